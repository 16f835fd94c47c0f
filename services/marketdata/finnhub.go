package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"marketpulse-backend/models"
)

const finnhubBaseURL = "https://finnhub.io/api/v1"

// FinnhubProvider serves real-time equity quotes from the Finnhub API
type FinnhubProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewFinnhubProvider creates a Finnhub provider
func NewFinnhubProvider(apiKey string) *FinnhubProvider {
	return &FinnhubProvider{
		apiKey:     apiKey,
		baseURL:    finnhubBaseURL,
		httpClient: newProviderClient(),
	}
}

func (p *FinnhubProvider) Name() string {
	return "finnhub"
}

// finnhubQuoteResponse represents the /quote API response
type finnhubQuoteResponse struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	ChangePercent float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// finnhubCandleResponse represents the /stock/candle API response
type finnhubCandleResponse struct {
	Status  string    `json:"s"` // "ok" or "no_data"
	Opens   []float64 `json:"o"`
	Highs   []float64 `json:"h"`
	Lows    []float64 `json:"l"`
	Closes  []float64 `json:"c"`
	Volumes []float64 `json:"v"`
	Times   []int64   `json:"t"`
}

// Quote fetches a real-time quote for an equity symbol
func (p *FinnhubProvider) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("finnhub: API key not configured")
	}

	reqURL := fmt.Sprintf("%s/quote?symbol=%s&token=%s",
		p.baseURL, url.QueryEscape(symbol), p.apiKey)

	var resp finnhubQuoteResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("finnhub: %w", err)
	}

	ts := time.Now()
	if resp.Timestamp > 0 {
		ts = time.Unix(resp.Timestamp, 0)
	}

	return &models.Quote{
		Symbol:        symbol,
		AssetClass:    models.AssetClassEquity,
		Price:         resp.Current,
		PreviousClose: resp.PreviousClose,
		Change:        resp.Change,
		ChangePercent: resp.ChangePercent,
		Timestamp:     ts,
		Source:        p.Name(),
		IsRealTime:    true,
	}, nil
}

// History fetches daily candles for the trailing number of days
func (p *FinnhubProvider) History(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("finnhub: API key not configured")
	}

	to := time.Now()
	from := to.AddDate(0, 0, -days)
	reqURL := fmt.Sprintf("%s/stock/candle?symbol=%s&resolution=D&from=%d&to=%d&token=%s",
		p.baseURL, url.QueryEscape(symbol), from.Unix(), to.Unix(), p.apiKey)

	var resp finnhubCandleResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("finnhub: %w", err)
	}

	if resp.Status != "ok" || len(resp.Closes) == 0 {
		return nil, fmt.Errorf("finnhub: no candle data for %s", symbol)
	}

	points := make([]models.HistoryPoint, 0, len(resp.Closes))
	for i := range resp.Closes {
		point := models.HistoryPoint{
			Date:  time.Unix(resp.Times[i], 0),
			Close: resp.Closes[i],
		}
		if i < len(resp.Opens) {
			point.Open = resp.Opens[i]
		}
		if i < len(resp.Highs) {
			point.High = resp.Highs[i]
		}
		if i < len(resp.Lows) {
			point.Low = resp.Lows[i]
		}
		if i < len(resp.Volumes) {
			point.Volume = resp.Volumes[i]
		}
		points = append(points, point)
	}

	return points, nil
}
