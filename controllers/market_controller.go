package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"marketpulse-backend/models"
	"marketpulse-backend/services/indicators"
	"marketpulse-backend/services/marketdata"
)

// MarketController handles quote, history, and indicator requests
type MarketController struct {
	chain *marketdata.Chain
}

// NewMarketController creates a new market data controller
func NewMarketController(chain *marketdata.Chain) *MarketController {
	return &MarketController{chain: chain}
}

// GetQuote returns the current quote for a symbol
// GET /api/v1/market/:symbol/quote
func (mc *MarketController) GetQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	quote, err := mc.chain.GetQuote(c.Request.Context(), symbol)
	if err != nil {
		var noQuote *marketdata.NoQuoteAvailableError
		if errors.As(err, &noQuote) {
			c.JSON(http.StatusNotFound, gin.H{"error": noQuote.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch quote"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

// GetHistory returns daily bars for a symbol, oldest first
// GET /api/v1/market/:symbol/history
func (mc *MarketController) GetHistory(c *gin.Context) {
	symbol := c.Param("symbol")
	days, _ := strconv.Atoi(c.DefaultQuery("days", "90"))
	if days < 1 || days > 365 {
		days = 90
	}

	points, err := mc.chain.GetHistory(c.Request.Context(), symbol, days)
	if err != nil {
		var noQuote *marketdata.NoQuoteAvailableError
		if errors.As(err, &noQuote) {
			c.JSON(http.StatusNotFound, gin.H{"error": noQuote.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":      symbol,
		"asset_class": models.InferAssetClass(symbol),
		"count":       len(points),
		"data":        points,
	})
}

// GetIndicators computes the indicator snapshot for a symbol
// GET /api/v1/market/:symbol/indicators
func (mc *MarketController) GetIndicators(c *gin.Context) {
	symbol := c.Param("symbol")
	days, _ := strconv.Atoi(c.DefaultQuery("days", "90"))
	if days < 1 || days > 365 {
		days = 90
	}

	points, err := mc.chain.GetHistory(c.Request.Context(), symbol, days)
	if err != nil {
		var noQuote *marketdata.NoQuoteAvailableError
		if errors.As(err, &noQuote) {
			c.JSON(http.StatusNotFound, gin.H{"error": noQuote.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}

	snap := indicators.Compute(points)

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"bars":   len(points),
		"data":   snap,
	})
}
