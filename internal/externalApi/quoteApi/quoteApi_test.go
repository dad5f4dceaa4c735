package quoteApi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/config"
	"papertrade/internal/externalApi"
)

func newTestApi(serverURL string) *QuoteApi {
	cfg := &config.Config{}
	cfg.API.Timeout = 5 * time.Second
	cfg.API.QuoteApi.Url = serverURL
	cfg.API.QuoteApi.Token = "test-token"
	return New(cfg)
}

func TestGetQuote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stable/stock/AAPL/quote", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"AAPL","companyName":"Apple Inc","latestPrice":150.25}`))
	}))
	defer server.Close()

	quote, err := newTestApi(server.URL).GetQuote(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, "Apple Inc", quote.Name)
	assert.Equal(t, "150.25", quote.Price.String())
}

func TestGetQuoteNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestApi(server.URL).GetQuote(context.Background(), "NOPE")
	assert.ErrorIs(t, err, externalApi.ErrNotFound)
}

func TestGetQuoteNullPrice(t *testing.T) {
	// the provider returns 200 with a null latestPrice for delisted tickers
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"DEAD","companyName":"Delisted Corp","latestPrice":null}`))
	}))
	defer server.Close()

	_, err := newTestApi(server.URL).GetQuote(context.Background(), "DEAD")
	assert.ErrorIs(t, err, externalApi.ErrNotFound)
}

func TestGetQuoteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestApi(server.URL).GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, externalApi.ErrUnavailable)
}

func TestGetQuoteUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := newTestApi(server.URL).GetQuote(context.Background(), "AAPL")
	assert.ErrorIs(t, err, externalApi.ErrUnavailable)
}
