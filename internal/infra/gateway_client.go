package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	deliveryFeeTitle = "Delivery fee"
	maxErrorBody     = 4 << 10
)

type PreferenceItem struct {
	Title     string
	Quantity  int64
	UnitPrice decimal.Decimal
}

type Payer struct {
	Name  string
	Email string
	Phone string
}

type BackURLs struct {
	Success string
	Failure string
	Pending string
}

type PreferenceRequest struct {
	OrderID         string
	Items           []PreferenceItem
	DeliveryFee     decimal.Decimal
	Currency        string
	Payer           Payer
	BackURLs        BackURLs
	NotificationURL string
}

type Preference struct {
	ID          string
	RedirectURL string
}

// Payment is the canonical payment record as reported by the gateway API.
type Payment struct {
	ID                string
	Status            string
	ExternalReference string
}

type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type preferenceItemPayload struct {
	Title      string      `json:"title"`
	Quantity   int64       `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
	CurrencyID string      `json:"currency_id"`
}

type payerPayload struct {
	Name  string        `json:"name"`
	Email string        `json:"email,omitempty"`
	Phone *phonePayload `json:"phone,omitempty"`
}

type phonePayload struct {
	Number string `json:"number"`
}

type backURLsPayload struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type preferencePayload struct {
	Items             []preferenceItemPayload `json:"items"`
	Payer             payerPayload            `json:"payer"`
	BackURLs          backURLsPayload         `json:"back_urls"`
	AutoReturn        string                  `json:"auto_return,omitempty"`
	ExternalReference string                  `json:"external_reference"`
	NotificationURL   string                  `json:"notification_url"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type paymentResponse struct {
	Status            string `json:"status"`
	ExternalReference string `json:"external_reference"`
}

// buildPreferencePayload turns the cart into gateway line items. A non-zero
// delivery fee becomes its own line so the itemization sums to the order total.
func buildPreferencePayload(req PreferenceRequest) preferencePayload {
	items := make([]preferenceItemPayload, 0, len(req.Items)+1)
	for _, it := range req.Items {
		items = append(items, preferenceItemPayload{
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  json.Number(it.UnitPrice.StringFixed(2)),
			CurrencyID: req.Currency,
		})
	}
	if !req.DeliveryFee.IsZero() {
		items = append(items, preferenceItemPayload{
			Title:      deliveryFeeTitle,
			Quantity:   1,
			UnitPrice:  json.Number(req.DeliveryFee.StringFixed(2)),
			CurrencyID: req.Currency,
		})
	}

	payer := payerPayload{Name: req.Payer.Name, Email: req.Payer.Email}
	if req.Payer.Phone != "" {
		payer.Phone = &phonePayload{Number: req.Payer.Phone}
	}

	return preferencePayload{
		Items: items,
		Payer: payer,
		BackURLs: backURLsPayload{
			Success: req.BackURLs.Success,
			Failure: req.BackURLs.Failure,
			Pending: req.BackURLs.Pending,
		},
		AutoReturn:        "approved",
		ExternalReference: req.OrderID,
		NotificationURL:   req.NotificationURL,
	}
}

func (c *GatewayClient) CreatePreference(ctx context.Context, accessToken string, req PreferenceRequest) (*Preference, error) {
	body, err := json.Marshal(buildPreferencePayload(req))
	if err != nil {
		return nil, fmt.Errorf("encode preference: %w", err)
	}

	var out preferenceResponse
	if err := c.do(ctx, "create_preference", http.MethodPost, "/checkout/preferences", accessToken, body, &out); err != nil {
		return nil, err
	}
	if out.ID == "" || out.InitPoint == "" {
		return nil, &domain.GatewayError{Op: "create_preference", StatusCode: http.StatusOK, Body: "response without id or init_point"}
	}
	return &Preference{ID: out.ID, RedirectURL: out.InitPoint}, nil
}

func (c *GatewayClient) FetchPayment(ctx context.Context, accessToken, paymentID string) (*Payment, error) {
	var out paymentResponse
	path := "/v1/payments/" + url.PathEscape(paymentID)
	if err := c.do(ctx, "fetch_payment", http.MethodGet, path, accessToken, nil, &out); err != nil {
		return nil, err
	}
	if out.Status == "" {
		return nil, &domain.GatewayError{Op: "fetch_payment", StatusCode: http.StatusOK, Body: "response without status"}
	}
	return &Payment{ID: paymentID, Status: out.Status, ExternalReference: out.ExternalReference}, nil
}

func (c *GatewayClient) do(ctx context.Context, op, method, path, accessToken string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.GatewayError{Op: op, StatusCode: resp.StatusCode, Body: "malformed response: " + err.Error()}
	}
	return nil
}
