package marketdata

import (
	"context"
	"log"
	"time"

	"marketpulse-backend/config"
	"marketpulse-backend/models"
)

// QuoteBroadcaster receives freshly fetched quotes for live fan-out
type QuoteBroadcaster interface {
	Broadcast(msgType, symbol string, data interface{})
}

// Chain resolves quotes and history through ordered provider lists per
// asset class. The first provider returning a valid payload wins; a
// network error, a zero price, or an empty series all count as failure
// so garbage quotes never propagate.
type Chain struct {
	cache       QuoteCache
	history     *HistoryStore // optional local fallback, may be nil
	broadcaster QuoteBroadcaster
	equity      []Provider
	forex       []Provider
	crypto      []Provider
	timeout     time.Duration
}

// SetBroadcaster attaches a live quote sink. Cached hits are not
// re-broadcast; only fresh provider data goes out.
func (c *Chain) SetBroadcaster(b QuoteBroadcaster) {
	c.broadcaster = b
}

// NewChain builds the default provider chains from configuration
func NewChain(cache QuoteCache, history *HistoryStore, cfg *config.Config) *Chain {
	return &Chain{
		cache:   cache,
		history: history,
		equity: []Provider{
			NewFinnhubProvider(cfg.FinnhubAPIKey),
			NewYahooProvider(),
			NewAlphaVantageProvider(cfg.AlphaVantageAPIKey, false),
		},
		forex: []Provider{
			NewFrankfurterProvider(),
			NewAlphaVantageProvider(cfg.AlphaVantageAPIKey, true),
		},
		crypto: []Provider{
			NewCoinGeckoProvider(),
		},
		timeout: ProviderTimeout,
	}
}

// NewChainWithProviders builds a chain with explicit provider lists
func NewChainWithProviders(cache QuoteCache, history *HistoryStore, equity, forex, crypto []Provider) *Chain {
	return &Chain{
		cache:   cache,
		history: history,
		equity:  equity,
		forex:   forex,
		crypto:  crypto,
		timeout: ProviderTimeout,
	}
}

func (c *Chain) providersFor(class models.AssetClass) []Provider {
	switch class {
	case models.AssetClassCrypto:
		return c.crypto
	case models.AssetClassForex:
		return c.forex
	default:
		return c.equity
	}
}

// GetQuote returns a quote for the symbol, consulting the cache first
// and writing the winning provider's result back on a miss.
func (c *Chain) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	class := models.InferAssetClass(symbol)
	key := CacheKey(symbol, class)

	if c.cache != nil {
		if quote, ok := c.cache.Get(key); ok {
			return quote, nil
		}
	}

	for _, provider := range c.providersFor(class) {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		quote, err := provider.Quote(pctx, symbol)
		cancel()

		if err != nil {
			log.Printf("Provider %s failed for %s: %v", provider.Name(), symbol, err)
			continue
		}
		if quote == nil || quote.Price == 0 {
			// A recognizably empty payload is a failure, not a quote
			log.Printf("Provider %s returned empty payload for %s", provider.Name(), symbol)
			continue
		}

		quote.Source = provider.Name()
		quote.AssetClass = class
		if c.cache != nil {
			c.cache.Set(key, quote)
		}
		if c.broadcaster != nil {
			c.broadcaster.Broadcast("quote", quote.Symbol, quote)
		}
		return quote, nil
	}

	return nil, &NoQuoteAvailableError{Symbol: symbol}
}

// GetHistory returns daily bars for the symbol, oldest first. Fresh
// provider data is written through to the local history store; when
// every provider fails, stored bars are served as a last resort.
func (c *Chain) GetHistory(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	class := models.InferAssetClass(symbol)

	for _, provider := range c.providersFor(class) {
		pctx, cancel := context.WithTimeout(ctx, c.timeout)
		points, err := provider.History(pctx, symbol, days)
		cancel()

		if err != nil {
			log.Printf("Provider %s history failed for %s: %v", provider.Name(), symbol, err)
			continue
		}
		if len(points) == 0 {
			log.Printf("Provider %s returned empty series for %s", provider.Name(), symbol)
			continue
		}

		if c.history != nil {
			if err := c.history.SaveHistory(symbol, points); err != nil {
				log.Printf("Warning: failed to persist history for %s: %v", symbol, err)
			}
		}
		return points, nil
	}

	if c.history != nil {
		points, err := c.history.LoadHistory(symbol, days)
		if err == nil && len(points) > 0 {
			log.Printf("Serving stored history for %s (%d bars), providers unavailable", symbol, len(points))
			return points, nil
		}
	}

	return nil, &NoQuoteAvailableError{Symbol: symbol}
}
