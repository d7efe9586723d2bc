package rest

import (
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/skooli/storefront/internal/service/cart"
	"github.com/skooli/storefront/internal/service/checkout"
	"github.com/skooli/storefront/internal/service/payment"
)

// Handler связывает HTTP-маршруты витрины с сервисным слоем.
type Handler struct {
	carts      *cart.Service
	checkout   *checkout.Orchestrator
	payments   *payment.Service
	reconciler *payment.Reconciler
	logger     *log.Entry
}

// NewHandler собирает HTTP-обработчик витрины.
func NewHandler(
	carts *cart.Service,
	orch *checkout.Orchestrator,
	payments *payment.Service,
	reconciler *payment.Reconciler,
	logger *log.Entry,
) *Handler {
	if logger == nil {
		logger = log.WithField("component", "rest")
	}
	return &Handler{
		carts:      carts,
		checkout:   orch,
		payments:   payments,
		reconciler: reconciler,
		logger:     logger,
	}
}

// Router строит gin-роутер витрины. Аутентификация внешняя: апстрим
// кладёт подтверждённый идентификатор в X-User-Id либо X-Session-Id.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	v1 := router.Group("/v1")
	{
		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PATCH("/cart/items/:productID", h.setCartItemQty)
		v1.DELETE("/cart/items/:productID", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)

		v1.POST("/checkout", h.createOrder)

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.GET("/orders/:id/track", h.trackOrder)
		v1.GET("/orders/:id/timeline", h.orderTimeline)

		v1.POST("/orders/:id/payments", h.initiatePayment)
		v1.GET("/orders/:id/payments", h.listPayments)

		v1.GET("/payments/methods", h.listPaymentMethods)
		v1.GET("/payments/:id/status", h.paymentStatus)
		v1.POST("/payments/:id/cancel", h.cancelPayment)

		// Webhook'и приходят от провайдеров, не от покупателей.
		v1.POST("/webhooks/payments/:provider", h.paymentWebhook)
	}

	return router
}
