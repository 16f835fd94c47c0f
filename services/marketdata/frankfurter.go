package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"marketpulse-backend/models"
)

const frankfurterBaseURL = "https://api.frankfurter.app"

// FrankfurterProvider serves ECB reference rates for currency pairs.
// Rates are daily fixings, so quotes are marked as not real-time.
type FrankfurterProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewFrankfurterProvider creates a Frankfurter forex provider
func NewFrankfurterProvider() *FrankfurterProvider {
	return &FrankfurterProvider{
		baseURL:    frankfurterBaseURL,
		httpClient: newProviderClient(),
	}
}

func (p *FrankfurterProvider) Name() string {
	return "frankfurter"
}

// frankfurterLatestResponse represents the /latest API response
type frankfurterLatestResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// frankfurterSeriesResponse represents the date-range API response
type frankfurterSeriesResponse struct {
	Base  string                        `json:"base"`
	Rates map[string]map[string]float64 `json:"rates"`
}

// Quote fetches the latest reference rate for a currency pair
func (p *FrankfurterProvider) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	base, quote, err := SplitCurrencyPair(symbol)
	if err != nil {
		return nil, fmt.Errorf("frankfurter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/latest?from=%s&to=%s", p.baseURL, base, quote)

	var resp frankfurterLatestResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("frankfurter: %w", err)
	}

	rate, ok := resp.Rates[quote]
	if !ok || rate == 0 {
		return nil, fmt.Errorf("frankfurter: no rate for %s", symbol)
	}

	ts := time.Now()
	if date, err := time.Parse("2006-01-02", resp.Date); err == nil {
		ts = date
	}

	return &models.Quote{
		Symbol:     symbol,
		AssetClass: models.AssetClassForex,
		Price:      rate,
		Timestamp:  ts,
		Source:     p.Name(),
		IsRealTime: false,
	}, nil
}

// History fetches daily fixings for the trailing number of days. Forex
// fixings carry a single rate per day, so OHLC collapse onto the close.
func (p *FrankfurterProvider) History(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	base, quote, err := SplitCurrencyPair(symbol)
	if err != nil {
		return nil, fmt.Errorf("frankfurter: %w", err)
	}

	to := time.Now()
	from := to.AddDate(0, 0, -days)
	reqURL := fmt.Sprintf("%s/%s..%s?from=%s&to=%s",
		p.baseURL, from.Format("2006-01-02"), to.Format("2006-01-02"), base, quote)

	var resp frankfurterSeriesResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("frankfurter: %w", err)
	}
	if len(resp.Rates) == 0 {
		return nil, fmt.Errorf("frankfurter: no rate series for %s", symbol)
	}

	points := make([]models.HistoryPoint, 0, len(resp.Rates))
	for dateStr, rates := range resp.Rates {
		rate, ok := rates[quote]
		if !ok || rate == 0 {
			continue
		}
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		points = append(points, models.HistoryPoint{
			Date:  date,
			Open:  rate,
			High:  rate,
			Low:   rate,
			Close: rate,
		})
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	if len(points) == 0 {
		return nil, fmt.Errorf("frankfurter: no usable fixings for %s", symbol)
	}
	return points, nil
}
