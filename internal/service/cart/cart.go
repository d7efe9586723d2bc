package cart

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/skooli/storefront/internal/domain"
)

// Service реализует операции над корзиной покупателя. Корзина — черновик:
// цены в ней фиксируются в момент добавления, а остатки проверяются мягко
// и окончательно резервируются только при оформлении заказа.
type Service struct {
	carts    domain.CartRepository
	products domain.ProductRepository
	logger   *log.Entry
}

// NewService создаёт сервис корзины.
func NewService(carts domain.CartRepository, products domain.ProductRepository, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "cart-service")
	}
	return &Service{
		carts:    carts,
		products: products,
		logger:   logger,
	}
}

// Get возвращает корзину владельца. Отсутствие корзины не ошибка:
// возвращается пустая корзина с проставленным владельцем.
func (s *Service) Get(identity domain.Identity) (domain.Cart, error) {
	if err := identity.Validate(); err != nil {
		return domain.Cart{}, err
	}

	cart, err := s.carts.GetByIdentity(identity)
	if err == nil {
		return cart, nil
	}
	if err != domain.ErrCartNotFound {
		return domain.Cart{}, err
	}

	return domain.Cart{
		UserID:    identity.UserID,
		SessionID: identity.SessionID,
		Lines:     []domain.CartLine{},
	}, nil
}

// AddLine добавляет qty единиц товара в корзину. Если товар уже есть,
// количество складывается, а цена позиции остаётся той, что была
// зафиксирована при первом добавлении.
func (s *Service) AddLine(identity domain.Identity, productID string, qty int32) (domain.Cart, error) {
	if qty <= 0 {
		return domain.Cart{}, domain.ErrLineQtyInvalid
	}

	cart, err := s.Get(identity)
	if err != nil {
		return domain.Cart{}, err
	}

	product, err := s.products.Get(productID)
	if err != nil {
		return domain.Cart{}, err
	}
	if !product.Active {
		return domain.Cart{}, domain.ErrProductInactive
	}

	combined := qty
	if idx := cart.FindLine(productID); idx >= 0 {
		combined += cart.Lines[idx].Qty
	}

	// Мягкая проверка остатка: авторитетное списание произойдёт при checkout.
	if product.StockQty < combined {
		return domain.Cart{}, &domain.StockError{
			ProductID: product.ID,
			SKU:       product.SKU,
			Requested: combined,
			Available: product.StockQty,
		}
	}

	if idx := cart.FindLine(productID); idx >= 0 {
		cart.Lines[idx].Qty = combined
	} else {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID:  product.ID,
			SKU:        product.SKU,
			Name:       product.Name,
			PriceMinor: product.PriceMinor,
			Qty:        qty,
		})
	}
	cart.Recalculate()
	cart.UpdatedAt = time.Now().UTC()

	saved, err := s.carts.Upsert(cart)
	if err != nil {
		return domain.Cart{}, err
	}

	s.logger.WithFields(log.Fields{
		"cart_id":    saved.ID,
		"product_id": productID,
		"qty":        qty,
	}).Debug("cart line added")

	return saved, nil
}

// SetLineQuantity выставляет количество позиции. qty <= 0 удаляет позицию.
func (s *Service) SetLineQuantity(identity domain.Identity, productID string, qty int32) (domain.Cart, error) {
	cart, err := s.Get(identity)
	if err != nil {
		return domain.Cart{}, err
	}

	idx := cart.FindLine(productID)
	if idx < 0 {
		return domain.Cart{}, domain.ErrProductNotFound
	}

	if qty <= 0 {
		cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
	} else {
		product, err := s.products.Get(productID)
		if err != nil {
			return domain.Cart{}, err
		}
		if product.StockQty < qty {
			return domain.Cart{}, &domain.StockError{
				ProductID: product.ID,
				SKU:       product.SKU,
				Requested: qty,
				Available: product.StockQty,
			}
		}
		cart.Lines[idx].Qty = qty
	}

	cart.Recalculate()
	cart.UpdatedAt = time.Now().UTC()

	if cart.Empty() {
		if err := s.carts.Delete(identity); err != nil {
			return domain.Cart{}, err
		}
		cart.ID = ""
		return cart, nil
	}

	return s.carts.Upsert(cart)
}

// Clear удаляет корзину владельца целиком.
func (s *Service) Clear(identity domain.Identity) error {
	if err := identity.Validate(); err != nil {
		return err
	}
	return s.carts.Delete(identity)
}
