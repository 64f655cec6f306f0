package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/service"
)

// AdminHandler drives orders through payment, shipping and delivery on
// behalf of the gateway, the warehouse and the carrier.
type AdminHandler struct {
	orders      *service.OrderService
	fulfillment *service.FulfillmentService
	log         *slog.Logger
}

func NewAdminHandler(orders *service.OrderService, fulfillment *service.FulfillmentService, log *slog.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, fulfillment: fulfillment, log: loggerOrDiscard(log)}
}

func (h *AdminHandler) ApplyPayment(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	resp, err := h.fulfillment.ApplyPaymentResult(c.Request.Context(), orderID, req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) Prepare(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.fulfillment.StartPreparation(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) Ship(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ShipOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	resp, err := h.fulfillment.ShipOrder(c.Request.Context(), orderID, req)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) UpdateDelivery(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.DeliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	resp, err := h.fulfillment.UpdateDeliveryStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) Refund(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AdminCancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	resp, err := h.fulfillment.RefundOrder(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AdminHandler) Cancel(c *gin.Context) {
	orderID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AdminCancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	resp, err := h.orders.AdminCancelOrder(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
