package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"marketpulse-backend/models"
)

const alphaVantageBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageProvider serves equity quotes/history and forex rates from
// the Alpha Vantage API. Payloads are end-of-day or near-realtime, so
// quotes are marked as not real-time.
type AlphaVantageProvider struct {
	apiKey     string
	baseURL    string
	forex      bool
	httpClient *http.Client
}

// NewAlphaVantageProvider creates an Alpha Vantage provider. When forex
// is true the provider resolves symbols as currency pairs.
func NewAlphaVantageProvider(apiKey string, forex bool) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		apiKey:     apiKey,
		baseURL:    alphaVantageBaseURL,
		forex:      forex,
		httpClient: newProviderClient(),
	}
}

func (p *AlphaVantageProvider) Name() string {
	if p.forex {
		return "alphavantage-fx"
	}
	return "alphavantage"
}

// avGlobalQuoteResponse represents the GLOBAL_QUOTE function response
type avGlobalQuoteResponse struct {
	GlobalQuote struct {
		Price         string `json:"05. price"`
		Volume        string `json:"06. volume"`
		PreviousClose string `json:"08. previous close"`
		Change        string `json:"09. change"`
		ChangePercent string `json:"10. change percent"`
	} `json:"Global Quote"`
}

// avExchangeRateResponse represents the CURRENCY_EXCHANGE_RATE response
type avExchangeRateResponse struct {
	Rate struct {
		ExchangeRate string `json:"5. Exchange Rate"`
		RefreshedAt  string `json:"6. Last Refreshed"`
	} `json:"Realtime Currency Exchange Rate"`
}

// avDailySeriesResponse represents the TIME_SERIES_DAILY response
type avDailySeriesResponse struct {
	Series map[string]struct {
		Open   string `json:"1. open"`
		High   string `json:"2. high"`
		Low    string `json:"3. low"`
		Close  string `json:"4. close"`
		Volume string `json:"5. volume"`
	} `json:"Time Series (Daily)"`
}

func parseFloat(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// Quote fetches a quote for an equity symbol or a currency pair
func (p *AlphaVantageProvider) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("alphavantage: API key not configured")
	}
	if p.forex {
		return p.forexQuote(ctx, symbol)
	}

	reqURL := fmt.Sprintf("%s?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		p.baseURL, url.QueryEscape(symbol), p.apiKey)

	var resp avGlobalQuoteResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("alphavantage: %w", err)
	}

	price := parseFloat(resp.GlobalQuote.Price)
	if price == 0 {
		return nil, fmt.Errorf("alphavantage: empty quote payload for %s", symbol)
	}

	return &models.Quote{
		Symbol:        symbol,
		AssetClass:    models.AssetClassEquity,
		Price:         price,
		PreviousClose: parseFloat(resp.GlobalQuote.PreviousClose),
		Volume:        parseFloat(resp.GlobalQuote.Volume),
		Change:        parseFloat(resp.GlobalQuote.Change),
		ChangePercent: parseFloat(resp.GlobalQuote.ChangePercent),
		Timestamp:     time.Now(),
		Source:        p.Name(),
		IsRealTime:    false,
	}, nil
}

func (p *AlphaVantageProvider) forexQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	base, quote, err := SplitCurrencyPair(symbol)
	if err != nil {
		return nil, fmt.Errorf("alphavantage: %w", err)
	}

	reqURL := fmt.Sprintf("%s?function=CURRENCY_EXCHANGE_RATE&from_currency=%s&to_currency=%s&apikey=%s",
		p.baseURL, base, quote, p.apiKey)

	var resp avExchangeRateResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("alphavantage: %w", err)
	}

	rate := parseFloat(resp.Rate.ExchangeRate)
	if rate == 0 {
		return nil, fmt.Errorf("alphavantage: empty exchange rate for %s", symbol)
	}

	return &models.Quote{
		Symbol:     symbol,
		AssetClass: models.AssetClassForex,
		Price:      rate,
		Timestamp:  time.Now(),
		Source:     p.Name(),
		IsRealTime: false,
	}, nil
}

// History fetches daily bars; forex pairs are not supported on the free
// daily series, so the forex variant only serves quotes.
func (p *AlphaVantageProvider) History(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("alphavantage: API key not configured")
	}
	if p.forex {
		return nil, fmt.Errorf("alphavantage: forex history not supported")
	}

	reqURL := fmt.Sprintf("%s?function=TIME_SERIES_DAILY&symbol=%s&outputsize=compact&apikey=%s",
		p.baseURL, url.QueryEscape(symbol), p.apiKey)

	var resp avDailySeriesResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("alphavantage: %w", err)
	}
	if len(resp.Series) == 0 {
		return nil, fmt.Errorf("alphavantage: no daily series for %s", symbol)
	}

	points := make([]models.HistoryPoint, 0, len(resp.Series))
	for dateStr, bar := range resp.Series {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		points = append(points, models.HistoryPoint{
			Date:   date,
			Open:   parseFloat(bar.Open),
			High:   parseFloat(bar.High),
			Low:    parseFloat(bar.Low),
			Close:  parseFloat(bar.Close),
			Volume: parseFloat(bar.Volume),
		})
	}

	// Series comes back as a map keyed by date; order oldest to newest
	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	if days > 0 && len(points) > days {
		points = points[len(points)-days:]
	}
	return points, nil
}

// SplitCurrencyPair splits "EURUSD" or "EUR/USD" into base and quote
func SplitCurrencyPair(symbol string) (string, string, error) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		if len(parts) == 2 && len(parts[0]) == 3 && len(parts[1]) == 3 {
			return parts[0], parts[1], nil
		}
	} else if len(s) == 6 {
		return s[:3], s[3:], nil
	}
	return "", "", fmt.Errorf("invalid currency pair %q", symbol)
}
