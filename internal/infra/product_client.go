package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

type ProductInfo struct {
	ID    uint64          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int64           `json:"stock"`
}

// ProductClient reads products from the catalog service. It never writes.
type ProductClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewProductClient(baseURL string, timeout time.Duration) *ProductClient {
	return &ProductClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// GetProductById returns nil without an error when the tenant has no such product.
func (c *ProductClient) GetProductById(ctx context.Context, tenantID string, id uint64) (*ProductInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/products/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Tenant-ID", tenantID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product service returned status %d", resp.StatusCode)
	}

	var p ProductInfo
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode product %d: %w", id, err)
	}
	return &p, nil
}
