package pricing

// Пакет pricing — чистое вычисление стоимости заказа: без I/O и без
// обращения к каталогу. Все суммы в минимальных денежных единицах.

// CouponKind различает процентные и фиксированные скидки.
type CouponKind string

const (
	CouponPercent CouponKind = "percent"
	CouponFixed   CouponKind = "fixed"
)

// Coupon описывает одну запись таблицы купонов.
type Coupon struct {
	Kind CouponKind
	// PercentBps — размер процентной скидки в базисных пунктах (1000 = 10%).
	PercentBps int64
	// AmountMinor — размер фиксированной скидки.
	AmountMinor int64
}

// Config задаёт правила расчёта для конкретного деплоймента.
type Config struct {
	// Currency — код валюты всех сумм. Пустое значение означает UGX.
	Currency string
	// TaxBps — ставка налога в базисных пунктах (1500 = 15%, 1800 = 18%).
	TaxBps int64
	// ShippingFlatMinor — фиксированная стоимость доставки.
	ShippingFlatMinor int64
	// ShippingFreeOverMinor — порог бесплатной доставки по subtotal.
	// Значение <= 0 означает, что бесплатной доставки нет.
	ShippingFreeOverMinor int64
	// Coupons — таблица код → скидка. Неизвестный код молча игнорируется.
	Coupons map[string]Coupon
}

// DefaultCoupons возвращает таблицу купонов по умолчанию.
func DefaultCoupons() map[string]Coupon {
	return map[string]Coupon{
		"WELCOME10": {Kind: CouponPercent, PercentBps: 1000},
		"SAVE20":    {Kind: CouponPercent, PercentBps: 2000},
		"SHIP5":     {Kind: CouponFixed, AmountMinor: 5},
	}
}

// Line — входная позиция расчёта: цена за единицу и количество.
type Line struct {
	UnitPriceMinor int64
	Qty            int32
}

// Quote — результат расчёта. Все компоненты неотрицательны и
// Total == Subtotal + Tax + Shipping - Discount.
type Quote struct {
	SubtotalMinor int64
	TaxMinor      int64
	ShippingMinor int64
	DiscountMinor int64
	TotalMinor    int64
}

// Engine вычисляет стоимость заказа по зафиксированной конфигурации.
type Engine struct {
	cfg Config
}

// NewEngine создаёт движок расчёта. Пустая таблица купонов допустима.
func NewEngine(cfg Config) *Engine {
	if cfg.Coupons == nil {
		cfg.Coupons = map[string]Coupon{}
	}
	return &Engine{cfg: cfg}
}

// Currency возвращает код валюты расчётов.
func (e *Engine) Currency() string {
	if e.cfg.Currency == "" {
		return "UGX"
	}
	return e.cfg.Currency
}

// Quote считает subtotal/tax/shipping/discount/total для набора позиций.
// Применение купона — advisory: неизвестный код даёт нулевую скидку,
// а не ошибку, чтобы не ронять оформление заказа.
func (e *Engine) Quote(lines []Line, couponCode string) Quote {
	var subtotal int64
	for _, line := range lines {
		if line.Qty <= 0 || line.UnitPriceMinor < 0 {
			continue
		}
		subtotal += line.UnitPriceMinor * int64(line.Qty)
	}

	tax := roundBps(subtotal, e.cfg.TaxBps)

	shipping := e.cfg.ShippingFlatMinor
	if e.cfg.ShippingFreeOverMinor > 0 && subtotal > e.cfg.ShippingFreeOverMinor {
		shipping = 0
	}

	discount := e.discountFor(subtotal, couponCode)

	return Quote{
		SubtotalMinor: subtotal,
		TaxMinor:      tax,
		ShippingMinor: shipping,
		DiscountMinor: discount,
		TotalMinor:    subtotal + tax + shipping - discount,
	}
}

// discountFor считает скидку, ограничивая её subtotal: итог не может
// уйти в минус даже при завышенном фиксированном купоне.
func (e *Engine) discountFor(subtotal int64, code string) int64 {
	if code == "" {
		return 0
	}
	coupon, ok := e.cfg.Coupons[code]
	if !ok {
		return 0
	}

	var discount int64
	switch coupon.Kind {
	case CouponPercent:
		discount = roundBps(subtotal, coupon.PercentBps)
	case CouponFixed:
		discount = coupon.AmountMinor
	}

	if discount < 0 {
		return 0
	}
	if discount > subtotal {
		return subtotal
	}
	return discount
}

// roundBps применяет ставку в базисных пунктах с округлением half-up
// до минимальной денежной единицы.
func roundBps(amount, bps int64) int64 {
	if amount <= 0 || bps <= 0 {
		return 0
	}
	return (amount*bps + 5000) / 10000
}
