package domain

import "time"

// Identity определяет владельца корзины: авторизованный пользователь
// или анонимная сессия. Заполнено ровно одно из двух полей.
type Identity struct {
	UserID    string
	SessionID string
}

// Validate проверяет инвариант XOR: ровно один владелец.
func (id Identity) Validate() error {
	switch {
	case id.UserID == "" && id.SessionID == "":
		return ErrIdentityRequired
	case id.UserID != "" && id.SessionID != "":
		return ErrIdentityAmbiguous
	default:
		return nil
	}
}

// Anonymous сообщает, принадлежит ли identity гостевой сессии.
func (id Identity) Anonymous() bool {
	return id.UserID == ""
}

// CartLine представляет одну позицию корзины.
type CartLine struct {
	ProductID string
	SKU       string
	Name      string
	// PriceMinor — цена, зафиксированная в момент добавления.
	// При оформлении заказа она пересчитывается по каталогу.
	PriceMinor int64
	Qty        int32
}

// Cart агрегирует позиции покупателя до оформления заказа.
// На одну identity существует не более одной активной корзины.
type Cart struct {
	ID        string
	UserID    string
	SessionID string
	Lines     []CartLine
	// TotalMinor — кэш суммы позиций; пересчитывается при каждой мутации.
	TotalMinor int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Identity возвращает владельца корзины.
func (c *Cart) Identity() Identity {
	return Identity{UserID: c.UserID, SessionID: c.SessionID}
}

// Recalculate пересчитывает кэшированную сумму по позициям.
func (c *Cart) Recalculate() {
	var total int64
	for _, line := range c.Lines {
		total += line.PriceMinor * int64(line.Qty)
	}
	c.TotalMinor = total
}

// FindLine возвращает индекс позиции с товаром или -1.
func (c *Cart) FindLine(productID string) int {
	for i, line := range c.Lines {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// Empty сообщает, пуста ли корзина.
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}
