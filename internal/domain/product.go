package domain

import "time"

// Product описывает товар каталога. Каталогом управляет внешний сервис:
// ядро читает цену/остаток и меняет только StockQty через StockLedger.
type Product struct {
	ID string
	// SKU — внешний артикул товара.
	SKU  string
	Name string
	// PriceMinor — актуальная цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// StockQty — авторитетный остаток на складе, никогда не уходит в минус.
	StockQty int32
	// Active — неактивные товары нельзя положить в заказ.
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Sellable проверяет, можно ли продать qty единиц товара прямо сейчас.
func (p *Product) Sellable(qty int32) bool {
	return p.Active && qty > 0 && p.StockQty >= qty
}
