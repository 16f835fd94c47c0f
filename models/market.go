package models

import (
	"strings"
	"time"
)

// AssetClass identifies which provider chain serves a symbol
type AssetClass string

const (
	AssetClassEquity AssetClass = "equity"
	AssetClassCrypto AssetClass = "crypto"
	AssetClassForex  AssetClass = "forex"
)

// String returns the string representation of AssetClass
func (a AssetClass) String() string {
	return string(a)
}

// Quote represents a normalized point-in-time price observation.
// Immutable once fetched; cached keyed by (symbol, asset class).
type Quote struct {
	Symbol        string     `json:"symbol"`
	AssetClass    AssetClass `json:"asset_class"`
	Price         float64    `json:"price"`
	PreviousClose float64    `json:"previous_close"`
	Volume        float64    `json:"volume"`
	Change        float64    `json:"change"`
	ChangePercent float64    `json:"change_percent"`
	Timestamp     time.Time  `json:"timestamp"`
	Source        string     `json:"source"`
	IsRealTime    bool       `json:"is_real_time"` // false for delayed/derived feeds
}

// HistoryPoint represents one daily OHLCV bar
type HistoryPoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// cryptoSymbols lists symbols routed to the crypto aggregator
var cryptoSymbols = map[string]bool{
	"BTC": true, "ETH": true, "SOL": true, "XRP": true, "ADA": true,
	"DOGE": true, "DOT": true, "MATIC": true, "LTC": true, "LINK": true,
	"AVAX": true, "BNB": true, "ATOM": true, "UNI": true, "XLM": true,
	"TRX": true, "SHIB": true, "NEAR": true, "ARB": true, "OP": true,
}

// forexPairs lists compact currency-pair symbols routed to the forex chain.
// Pairs written with a slash (EUR/USD) are recognized without a table entry.
var forexPairs = map[string]bool{
	"EURUSD": true, "GBPUSD": true, "USDJPY": true, "USDCHF": true,
	"AUDUSD": true, "USDCAD": true, "NZDUSD": true, "EURGBP": true,
	"EURJPY": true, "GBPJPY": true,
}

// InferAssetClass maps a symbol to its asset class, defaulting to equity
func InferAssetClass(symbol string) AssetClass {
	s := strings.ToUpper(strings.TrimSpace(symbol))

	if cryptoSymbols[s] {
		return AssetClassCrypto
	}

	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		if len(parts) == 2 && len(parts[0]) == 3 && len(parts[1]) == 3 {
			return AssetClassForex
		}
	}
	if forexPairs[s] {
		return AssetClassForex
	}

	return AssetClassEquity
}
