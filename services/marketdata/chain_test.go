package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse-backend/models"
)

type fakeProvider struct {
	name       string
	quote      *models.Quote
	quoteErr   error
	history    []models.HistoryPoint
	historyErr error
	quoteCalls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	f.quoteCalls++
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quote, nil
}

func (f *fakeProvider) History(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func TestChainFallsBackOnProviderError(t *testing.T) {
	primary := &fakeProvider{name: "primary", quoteErr: errors.New("connection refused")}
	secondary := &fakeProvider{name: "secondary", quote: &models.Quote{Symbol: "AAPL", Price: 187.5}}

	chain := NewChainWithProviders(nil, nil, []Provider{primary, secondary}, nil, nil)

	quote, err := chain.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "secondary", quote.Source)
	assert.Equal(t, 187.5, quote.Price)
}

func TestChainTreatsZeroPriceAsFailure(t *testing.T) {
	primary := &fakeProvider{name: "primary", quote: &models.Quote{Symbol: "AAPL", Price: 0}}
	secondary := &fakeProvider{name: "secondary", quote: &models.Quote{Symbol: "AAPL", Price: 92.1}}

	chain := NewChainWithProviders(nil, nil, []Provider{primary, secondary}, nil, nil)

	quote, err := chain.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "secondary", quote.Source, "zero price must not propagate")
	assert.Equal(t, 92.1, quote.Price)
}

func TestChainAllProvidersFail(t *testing.T) {
	primary := &fakeProvider{name: "primary", quoteErr: errors.New("timeout")}
	secondary := &fakeProvider{name: "secondary", quoteErr: errors.New("http 500")}

	chain := NewChainWithProviders(nil, nil, []Provider{primary, secondary}, nil, nil)

	_, err := chain.GetQuote(context.Background(), "XYZ")
	require.Error(t, err)

	var noQuote *NoQuoteAvailableError
	require.ErrorAs(t, err, &noQuote)
	assert.Equal(t, "XYZ", noQuote.Symbol)
	assert.Contains(t, err.Error(), "XYZ")
}

func TestChainServesCachedQuote(t *testing.T) {
	provider := &fakeProvider{name: "primary", quote: &models.Quote{Symbol: "AAPL", Price: 187.5}}
	cache := NewTTLQuoteCache(time.Minute)

	chain := NewChainWithProviders(cache, nil, []Provider{provider}, nil, nil)

	first, err := chain.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	second, err := chain.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.Equal(t, first.Price, second.Price)
	assert.Equal(t, 1, provider.quoteCalls, "second call should be served from cache")
}

func TestChainRoutesCryptoToCryptoProviders(t *testing.T) {
	equity := &fakeProvider{name: "equity", quote: &models.Quote{Price: 1}}
	crypto := &fakeProvider{name: "crypto", quote: &models.Quote{Symbol: "BTC", Price: 65000}}

	chain := NewChainWithProviders(nil, nil, []Provider{equity}, nil, []Provider{crypto})

	quote, err := chain.GetQuote(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Equal(t, "crypto", quote.Source)
	assert.Equal(t, models.AssetClassCrypto, quote.AssetClass)
	assert.Zero(t, equity.quoteCalls)
}

func TestChainHistoryEmptySeriesFallsThrough(t *testing.T) {
	bars := []models.HistoryPoint{
		{Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Close: 100},
		{Date: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC), Close: 101},
	}
	primary := &fakeProvider{name: "primary", history: nil}
	secondary := &fakeProvider{name: "secondary", history: bars}

	chain := NewChainWithProviders(nil, nil, []Provider{primary, secondary}, nil, nil)

	points, err := chain.GetHistory(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	assert.Len(t, points, 2)
}

func TestChainHistoryAllFail(t *testing.T) {
	primary := &fakeProvider{name: "primary", historyErr: errors.New("down")}

	chain := NewChainWithProviders(nil, nil, []Provider{primary}, nil, nil)

	_, err := chain.GetHistory(context.Background(), "AAPL", 30)
	var noQuote *NoQuoteAvailableError
	require.ErrorAs(t, err, &noQuote)
	assert.Equal(t, "AAPL", noQuote.Symbol)
}
