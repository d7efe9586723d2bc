package payment

import (
	"encoding/json"
	"fmt"

	"github.com/skooli/storefront/internal/domain"
)

// webhookEnvelope покрывает конверты всех поддерживаемых провайдеров:
// mobile-money шлёт transaction_id, карточный шлюз и PayPal — id.
type webhookEnvelope struct {
	TransactionID string `json:"transaction_id"`
	ID            string `json:"id"`
	Status        string `json:"status"`
}

// ParseWebhook разбирает сырой webhook провайдера в нормализованное
// уведомление. Сырой payload сохраняется как есть для аудита и хэша
// идемпотентности.
func ParseWebhook(provider string, body []byte) (Notification, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Notification{}, fmt.Errorf("malformed %s webhook: %w", provider, err)
	}

	txID := env.TransactionID
	if txID == "" {
		txID = env.ID
	}
	if txID == "" {
		return Notification{}, fmt.Errorf("%s webhook without transaction id", provider)
	}

	var status domain.PaymentStatus
	switch provider {
	case "momo":
		status = normalizeMomoStatus(env.Status)
	case "card":
		status = normalizeCardStatus(env.Status)
	case "paypal":
		status = normalizePayPalStatus(env.Status)
	default:
		return Notification{}, domain.ErrUnsupportedPaymentMethod
	}

	return Notification{
		Provider:     provider,
		ProviderTxID: txID,
		Status:       status,
		Raw:          body,
	}, nil
}
