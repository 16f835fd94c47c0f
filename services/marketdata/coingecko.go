package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"marketpulse-backend/models"
)

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// coinAliases maps ticker symbols to CoinGecko coin IDs. Symbols are
// mapped through this table before lookup; unknown symbols are tried
// lowercased as-is.
var coinAliases = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"LINK":  "chainlink",
	"AVAX":  "avalanche-2",
	"BNB":   "binancecoin",
	"ATOM":  "cosmos",
	"UNI":   "uniswap",
	"XLM":   "stellar",
	"TRX":   "tron",
	"SHIB":  "shiba-inu",
	"NEAR":  "near",
	"ARB":   "arbitrum",
	"OP":    "optimism",
}

// CoinGeckoProvider is the single authoritative aggregator for crypto
type CoinGeckoProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewCoinGeckoProvider creates a CoinGecko provider
func NewCoinGeckoProvider() *CoinGeckoProvider {
	return &CoinGeckoProvider{
		baseURL:    coinGeckoBaseURL,
		httpClient: newProviderClient(),
	}
}

func (p *CoinGeckoProvider) Name() string {
	return "coingecko"
}

// CoinID resolves a ticker symbol to a CoinGecko coin ID
func CoinID(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if id, ok := coinAliases[s]; ok {
		return id
	}
	return strings.ToLower(s)
}

// Quote fetches the current USD price with 24h volume and change
func (p *CoinGeckoProvider) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	coinID := CoinID(symbol)
	reqURL := fmt.Sprintf(
		"%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_vol=true&include_24hr_change=true",
		p.baseURL, coinID)

	var resp map[string]struct {
		USD       float64 `json:"usd"`
		USDVol    float64 `json:"usd_24h_vol"`
		USDChange float64 `json:"usd_24h_change"`
	}
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}

	data, ok := resp[coinID]
	if !ok || data.USD == 0 {
		return nil, fmt.Errorf("coingecko: no price for %s (coin id %s)", symbol, coinID)
	}

	// Derive the 24h-ago reference price from the percentage change
	previousClose := data.USD
	if data.USDChange != 0 {
		previousClose = data.USD / (1 + data.USDChange/100)
	}

	return &models.Quote{
		Symbol:        strings.ToUpper(symbol),
		AssetClass:    models.AssetClassCrypto,
		Price:         data.USD,
		PreviousClose: previousClose,
		Volume:        data.USDVol,
		Change:        data.USD - previousClose,
		ChangePercent: data.USDChange,
		Timestamp:     time.Now(),
		Source:        p.Name(),
		IsRealTime:    true,
	}, nil
}

// History fetches daily OHLC candles. CoinGecko's OHLC endpoint carries
// no volume, so Volume is zero for crypto bars.
func (p *CoinGeckoProvider) History(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	coinID := CoinID(symbol)
	reqURL := fmt.Sprintf("%s/coins/%s/ohlc?vs_currency=usd&days=%d", p.baseURL, coinID, days)

	var resp [][]float64
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("coingecko: no OHLC data for %s (coin id %s)", symbol, coinID)
	}

	points := make([]models.HistoryPoint, 0, len(resp))
	for _, row := range resp {
		if len(row) < 5 {
			continue
		}
		points = append(points, models.HistoryPoint{
			Date:  time.UnixMilli(int64(row[0])),
			Open:  row[1],
			High:  row[2],
			Low:   row[3],
			Close: row[4],
		})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("coingecko: no usable candles for %s", symbol)
	}
	return points, nil
}
