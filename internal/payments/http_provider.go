package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/voyagehq/bookingcore/config"
	"github.com/voyagehq/bookingcore/internal/service/refund"
)

// HTTPProvider calls the payment provider's refund endpoint. The provider
// deduplicates on the Idempotency-Key header, so retrying after a timeout or
// crash never moves money twice.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logrus.Logger
}

func NewHTTPProvider(cfg config.ProviderConfig, log *logrus.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{},
		log:     log,
	}
}

type refundRequestBody struct {
	PaymentRef  string `json:"payment_ref"`
	AmountCents int64  `json:"amount_cents"`
}

type refundResponseBody struct {
	RefundID string `json:"refund_id"`
}

func (p *HTTPProvider) CreateRefund(ctx context.Context, params refund.ProviderRefundParams) (refund.ProviderRefundResult, error) {
	body, err := json.Marshal(refundRequestBody{
		PaymentRef:  params.PaymentRef,
		AmountCents: params.AmountCents,
	})
	if err != nil {
		return refund.ProviderRefundResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/refunds", bytes.NewReader(body))
	if err != nil {
		return refund.ProviderRefundResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", params.IdempotencyKey)
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return refund.ProviderRefundResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return refund.ProviderRefundResult{}, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var out refundResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return refund.ProviderRefundResult{}, err
	}

	p.log.WithFields(logrus.Fields{
		"payment_ref":        params.PaymentRef,
		"provider_refund_id": out.RefundID,
	}).Info("provider refund created")

	return refund.ProviderRefundResult{ProviderRefundID: out.RefundID}, nil
}

var _ refund.PaymentProvider = (*HTTPProvider)(nil)
