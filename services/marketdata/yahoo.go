package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"marketpulse-backend/models"
)

const yahooChartBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooProvider serves delayed equity quotes and daily history from the
// Yahoo Finance chart API. Quotes are marked as not real-time.
type YahooProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewYahooProvider creates a Yahoo Finance provider
func NewYahooProvider() *YahooProvider {
	return &YahooProvider{
		baseURL:    yahooChartBaseURL,
		httpClient: newProviderClient(),
	}
}

func (p *YahooProvider) Name() string {
	return "yahoo"
}

// yahooChartResponse represents the v8 chart API response
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				ChartPreviousClose  float64 `json:"chartPreviousClose"`
				RegularMarketVolume float64 `json:"regularMarketVolume"`
				RegularMarketTime   int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamps []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Opens   []float64 `json:"open"`
					Highs   []float64 `json:"high"`
					Lows    []float64 `json:"low"`
					Closes  []float64 `json:"close"`
					Volumes []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

// yahooRanges maps trailing-day windows onto the fixed range tokens the
// chart API accepts; arbitrary "Nd" values are rejected with HTTP 400.
// Thresholds sit below each token's calendar span so the chosen range
// always covers the requested window.
var yahooRanges = []struct {
	maxDays int
	token   string
}{
	{5, "5d"},
	{28, "1mo"},
	{88, "3mo"},
	{178, "6mo"},
	{360, "1y"},
	{725, "2y"},
	{1820, "5y"},
	{3640, "10y"},
}

func yahooRangeForDays(days int) string {
	for _, r := range yahooRanges {
		if days <= r.maxDays {
			return r.token
		}
	}
	return "max"
}

func (p *YahooProvider) fetchChart(ctx context.Context, symbol, rangeParam string) (*yahooChartResponse, error) {
	reqURL := fmt.Sprintf("%s/%s?range=%s&interval=1d",
		p.baseURL, url.PathEscape(symbol), rangeParam)

	var resp yahooChartResponse
	if err := getJSON(ctx, p.httpClient, reqURL, &resp); err != nil {
		return nil, fmt.Errorf("yahoo: %w", err)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: empty chart result for %s", symbol)
	}
	return &resp, nil
}

// Quote fetches the latest (delayed) quote from chart metadata
func (p *YahooProvider) Quote(ctx context.Context, symbol string) (*models.Quote, error) {
	resp, err := p.fetchChart(ctx, symbol, "5d")
	if err != nil {
		return nil, err
	}

	meta := resp.Chart.Result[0].Meta
	ts := time.Now()
	if meta.RegularMarketTime > 0 {
		ts = time.Unix(meta.RegularMarketTime, 0)
	}

	change := meta.RegularMarketPrice - meta.ChartPreviousClose
	changePercent := 0.0
	if meta.ChartPreviousClose != 0 {
		changePercent = change / meta.ChartPreviousClose * 100
	}

	return &models.Quote{
		Symbol:        symbol,
		AssetClass:    models.AssetClassEquity,
		Price:         meta.RegularMarketPrice,
		PreviousClose: meta.ChartPreviousClose,
		Volume:        meta.RegularMarketVolume,
		Change:        change,
		ChangePercent: changePercent,
		Timestamp:     ts,
		Source:        p.Name(),
		IsRealTime:    false,
	}, nil
}

// History fetches daily OHLCV bars for the trailing number of days. The
// request uses the smallest allowed range token covering the window and
// trims the surplus client-side.
func (p *YahooProvider) History(ctx context.Context, symbol string, days int) ([]models.HistoryPoint, error) {
	resp, err := p.fetchChart(ctx, symbol, yahooRangeForDays(days))
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 || len(result.Timestamps) == 0 {
		return nil, fmt.Errorf("yahoo: no history data for %s", symbol)
	}

	bars := result.Indicators.Quote[0]
	points := make([]models.HistoryPoint, 0, len(result.Timestamps))
	for i, ts := range result.Timestamps {
		if i >= len(bars.Closes) || bars.Closes[i] == 0 {
			continue // market holidays come back as null/zero rows
		}
		point := models.HistoryPoint{
			Date:  time.Unix(ts, 0),
			Close: bars.Closes[i],
		}
		if i < len(bars.Opens) {
			point.Open = bars.Opens[i]
		}
		if i < len(bars.Highs) {
			point.High = bars.Highs[i]
		}
		if i < len(bars.Lows) {
			point.Low = bars.Lows[i]
		}
		if i < len(bars.Volumes) {
			point.Volume = bars.Volumes[i]
		}
		points = append(points, point)
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("yahoo: no usable bars for %s", symbol)
	}
	if days > 0 && len(points) > days {
		points = points[len(points)-days:]
	}
	return points, nil
}
