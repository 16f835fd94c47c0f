package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"marketpulse-backend/models"
)

// ProviderTimeout bounds a single upstream call so a slow provider
// cannot stall the whole chain.
const ProviderTimeout = 5 * time.Second

// Provider is one upstream market data source. Both methods must honor
// context cancellation and return normalized payloads; a zero price or
// an empty series is treated as a failure by the chain, never passed on.
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (*models.Quote, error)
	History(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error)
}

// NoQuoteAvailableError is raised when every provider in a chain failed
// for a symbol.
type NoQuoteAvailableError struct {
	Symbol string
}

func (e *NoQuoteAvailableError) Error() string {
	return fmt.Sprintf("no quote available for %s: all providers exhausted", e.Symbol)
}

// browserUserAgent is sent to public endpoints that reject default Go clients
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// getJSON performs a GET request and decodes the JSON response body
func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// newProviderClient returns the http client shared by provider implementations
func newProviderClient() *http.Client {
	return &http.Client{Timeout: ProviderTimeout}
}
