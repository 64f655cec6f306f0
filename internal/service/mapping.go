package service

import (
	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/pricing"
)

func toUserResponse(user *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID: user.ID, Email: user.Email,
		FirstName: user.FirstName, LastName: user.LastName, Role: user.Role,
	}
}

func toProductResponse(p *model.Product) dto.ProductResponse {
	return dto.ProductResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		BrandName:      p.BrandName,
		CategoryName:   p.CategoryName,
		SKU:            p.SKU,
		ImageURL:       p.ImageURL,
		Price:          p.Price,
		DiscountPrice:  p.DiscountPrice,
		EffectivePrice: pricing.EffectiveUnitPrice(p),
		Stock:          p.Stock,
		Status:         p.Status,
		IsFeatured:     p.IsFeatured,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func toProductResponses(products []model.Product) []dto.ProductResponse {
	out := make([]dto.ProductResponse, 0, len(products))
	for i := range products {
		out = append(out, toProductResponse(&products[i]))
	}
	return out
}

func toOrderResponse(o *model.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, dto.OrderItemResponse{
			ID:           it.ID,
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			BrandName:    it.BrandName,
			CategoryName: it.CategoryName,
			SKU:          it.SKU,
			ImageURL:     it.ImageURL,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			TotalPrice:   it.TotalPrice,
		})
	}
	return dto.OrderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		PaymentMethod: o.PaymentMethod,
		Shipping:      o.Shipping,
		Subtotal:      o.Subtotal,
		ShippingFee:   o.ShippingFee,
		Discount:      o.Discount,
		Total:         o.Total,
		OrderMemo:     o.OrderMemo,
		ItemCount:     o.TotalItemCount(),
		Items:         items,
		OrderedAt:     o.OrderedAt,
		PaidAt:        o.PaidAt,
		ShippedAt:     o.ShippedAt,
		DeliveredAt:   o.DeliveredAt,
		CancelledAt:   o.CancelledAt,
		CanCancel:     o.CanCancel(),
		CanRefund:     o.CanRefund(),
	}
}

func toPaymentResponse(p *model.Payment) dto.PaymentResponse {
	var va *dto.VirtualAccountInfo
	if p.VirtualAccount.Number != "" {
		va = &dto.VirtualAccountInfo{
			Bank:    p.VirtualAccount.Bank,
			Number:  p.VirtualAccount.Number,
			Holder:  p.VirtualAccount.Holder,
			DueDate: p.VirtualAccount.DueDate,
		}
	}
	return dto.PaymentResponse{
		OrderID:          p.OrderID,
		PaymentKey:       p.PaymentKey,
		TransactionID:    p.TransactionID,
		Provider:         p.Provider,
		Method:           p.Method,
		Status:           p.Status,
		Amount:           p.Amount,
		Currency:         p.Currency,
		CardCompany:      p.CardCompany,
		CardNumberMasked: p.CardNumberMasked,
		VirtualAccount:   va,
		ApprovedAt:       p.ApprovedAt,
		FailedAt:         p.FailedAt,
		CancelledAt:      p.CancelledAt,
		FailureReason:    p.FailureReason,
		CancelReason:     p.CancelReason,
	}
}

func toDeliveryResponse(d *model.Delivery) dto.DeliveryResponse {
	return dto.DeliveryResponse{
		OrderID:               d.OrderID,
		Carrier:               d.Carrier,
		TrackingNumber:        d.TrackingNumber,
		Status:                d.Status,
		CanTrack:              d.Status.CanTrack() && d.Trackable(),
		EstimatedDeliveryDate: d.EstimatedDeliveryDate,
		ActualDeliveryDate:    d.ActualDeliveryDate,
	}
}
