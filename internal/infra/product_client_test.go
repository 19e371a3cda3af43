package infra

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductClient_GetProductById(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/products/1" && r.Header.Get("X-Tenant-ID") == "tenant-a":
			_, _ = w.Write([]byte(`{"id":1,"name":"Margherita","price":"25.50","stock":4}`))
		case r.URL.Path == "/products/2":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	client := NewProductClient(srv.URL, time.Second)

	p, err := client.GetProductById(context.Background(), "tenant-a", 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Margherita", p.Name)
	assert.Equal(t, "25.5", p.Price.String())
	assert.Equal(t, int64(4), p.Stock)

	other, err := client.GetProductById(context.Background(), "tenant-b", 1)
	assert.NoError(t, err)
	assert.Nil(t, other)

	_, err = client.GetProductById(context.Background(), "tenant-a", 2)
	assert.ErrorContains(t, err, "status 500")
}
