package rest

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skooli/storefront/internal/domain"
	"github.com/skooli/storefront/internal/service/checkout"
	"github.com/skooli/storefront/internal/service/payment"
)

const (
	headerUserID    = "X-User-Id"
	headerSessionID = "X-Session-Id"
)

// identityFrom извлекает владельца корзины из заголовков запроса.
func identityFrom(c *gin.Context) (domain.Identity, error) {
	identity := domain.Identity{
		UserID:    c.GetHeader(headerUserID),
		SessionID: c.GetHeader(headerSessionID),
	}
	if err := identity.Validate(); err != nil {
		return domain.Identity{}, err
	}
	return identity, nil
}

// userFrom извлекает авторизованного пользователя; гостевые сессии
// к заказам не допускаются.
func userFrom(c *gin.Context) (string, error) {
	userID := c.GetHeader(headerUserID)
	if userID == "" {
		return "", domain.ErrUserRequired
	}
	return userID, nil
}

func (h *Handler) getCart(c *gin.Context) {
	identity, err := identityFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	cart, err := h.carts.Get(identity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(cart))
}

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Qty       int32  `json:"qty" binding:"required"`
}

func (h *Handler) addCartItem(c *gin.Context) {
	identity, err := identityFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cart, err := h.carts.AddLine(identity, req.ProductID, req.Qty)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(cart))
}

type setCartItemQtyRequest struct {
	Qty int32 `json:"qty"`
}

func (h *Handler) setCartItemQty(c *gin.Context) {
	identity, err := identityFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req setCartItemQtyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cart, err := h.carts.SetLineQuantity(identity, c.Param("productID"), req.Qty)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(cart))
}

func (h *Handler) removeCartItem(c *gin.Context) {
	identity, err := identityFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	cart, err := h.carts.SetLineQuantity(identity, c.Param("productID"), 0)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartView(cart))
}

func (h *Handler) clearCart(c *gin.Context) {
	identity, err := identityFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.carts.Clear(identity); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type checkoutRequest struct {
	CouponCode      string         `json:"coupon_code"`
	PaymentMethod   string         `json:"payment_method"`
	ShippingAddress domain.Address `json:"shipping_address"`
	BillingAddress  domain.Address `json:"billing_address"`
	DeliveryNotes   string         `json:"delivery_notes"`
}

func (h *Handler) createOrder(c *gin.Context) {
	userID, err := userFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := h.checkout.CreateOrder(checkout.Request{
		Identity:        domain.Identity{UserID: userID},
		CouponCode:      req.CouponCode,
		PaymentMethod:   req.PaymentMethod,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		DeliveryNotes:   req.DeliveryNotes,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newOrderView(order))
}

func (h *Handler) listOrders(c *gin.Context) {
	userID, err := userFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	orders, err := h.checkout.List(userID, 0)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": newOrderViews(orders)})
}

func (h *Handler) getOrder(c *gin.Context) {
	userID, err := userFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	order, err := h.checkout.Get(userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderView(order))
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(c *gin.Context) {
	userID, err := userFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req cancelOrderRequest
	// Пустое тело допустимо: причина опциональна.
	_ = c.ShouldBindJSON(&req)

	order, err := h.checkout.Cancel(userID, c.Param("id"), req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderView(order))
}

func (h *Handler) trackOrder(c *gin.Context) {
	userID, err := userFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	info, err := h.checkout.Track(userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (h *Handler) orderTimeline(c *gin.Context) {
	userID, err := userFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	events, err := h.checkout.Timeline(userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": newTimelineViews(events)})
}

type initiatePaymentRequest struct {
	Method      string `json:"method" binding:"required"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
	ReturnURL   string `json:"return_url"`
	CancelURL   string `json:"cancel_url"`
}

func (h *Handler) initiatePayment(c *gin.Context) {
	userID, err := userFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pay, handle, err := h.payments.Initiate(c.Request.Context(), userID, c.Param("id"), req.Method, domain.ChargeDetails{
		PhoneNumber: req.PhoneNumber,
		Email:       req.Email,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, paymentInitiationView{
		Payment:      newPaymentView(pay),
		RedirectURL:  handle.RedirectURL,
		ClientSecret: handle.ClientSecret,
		Reference:    handle.Reference,
		Instructions: handle.Instructions,
	})
}

func (h *Handler) listPayments(c *gin.Context) {
	userID, err := userFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	payments, err := h.payments.ListByOrder(userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": newPaymentViews(payments)})
}

func (h *Handler) listPaymentMethods(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"methods": newPaymentMethodViews(h.payments.Methods())})
}

// paymentStatus возвращает состояние платежа. Зависший pending
// доуточняется опросом провайдера; недоступность шлюза не ломает
// ответ, клиент получает последнее известное состояние.
func (h *Handler) paymentStatus(c *gin.Context) {
	userID, err := userFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	pay, err := h.payments.GetForUser(userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if !pay.Status.Terminal() && pay.ProviderTxID != "" {
		provider, perr := h.payments.Provider(pay.Provider)
		if perr == nil {
			polled, perr := h.reconciler.Poll(c.Request.Context(), provider, pay.ID)
			if perr != nil {
				h.logger.WithError(perr).WithField("payment_id", pay.ID).Warn("provider status poll failed")
			} else {
				pay = polled
			}
		}
	}

	c.JSON(http.StatusOK, newPaymentView(pay))
}

// cancelPayment отменяет незавершённую попытку оплаты, чтобы покупатель
// мог заплатить другим методом не дожидаясь таймаута провайдера.
func (h *Handler) cancelPayment(c *gin.Context) {
	userID, err := userFrom(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	pay, err := h.payments.CancelAttempt(userID, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPaymentView(pay))
}

// paymentWebhook принимает уведомление провайдера. Ответ 200 означает
// "событие принято": повторная доставка безопасна, провайдер может
// слать webhook сколько угодно раз.
func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	// Любая ошибка разбора — 400: ретраи провайдера не помогут.
	notification, err := payment.ParseWebhook(c.Param("provider"), body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.reconciler.Apply(notification); err != nil {
		// Неизвестная транзакция — не повод для ретраев провайдера.
		if errors.Is(err, domain.ErrPaymentNotFound) {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// writeError переводит доменную ошибку в HTTP-статус.
func (h *Handler) writeError(c *gin.Context, err error) {
	var stockErr *domain.StockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      stockErr.Error(),
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrCartNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrPaymentNotFound):
		status = http.StatusNotFound

	case errors.Is(err, domain.ErrOrderVersionConflict),
		errors.Is(err, domain.ErrPaymentInFlight):
		status = http.StatusConflict

	case errors.Is(err, domain.ErrIdentityRequired),
		errors.Is(err, domain.ErrUserRequired):
		status = http.StatusUnauthorized

	case errors.Is(err, domain.ErrIdentityAmbiguous),
		errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrOrderNotPayable),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrEmptyCart),
		errors.Is(err, domain.ErrLineQtyInvalid),
		errors.Is(err, domain.ErrProductInactive),
		errors.Is(err, domain.ErrShippingAddressRequired),
		errors.Is(err, domain.ErrPaymentProviderRequired),
		errors.Is(err, domain.ErrUnsupportedPaymentMethod):
		status = http.StatusBadRequest

	case errors.Is(err, domain.ErrProviderUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
