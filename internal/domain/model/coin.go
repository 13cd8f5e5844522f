package model

import (
	"strings"
	"time"

	"github.com/samber/lo"
)

// Coin is a cryptocurrency the bot can quote, keyed by its CoinGecko id.
type Coin struct {
	ID     string
	Symbol string
	Name   string
}

var SupportedCoins = []Coin{
	{ID: "bitcoin", Symbol: "BTC", Name: "Bitcoin"},
	{ID: "ethereum", Symbol: "ETH", Name: "Ethereum"},
	{ID: "binancecoin", Symbol: "BNB", Name: "BNB"},
	{ID: "cardano", Symbol: "ADA", Name: "Cardano"},
	{ID: "solana", Symbol: "SOL", Name: "Solana"},
	{ID: "ripple", Symbol: "XRP", Name: "XRP"},
	{ID: "polkadot", Symbol: "DOT", Name: "Polkadot"},
	{ID: "dogecoin", Symbol: "DOGE", Name: "Dogecoin"},
	{ID: "avalanche-2", Symbol: "AVAX", Name: "Avalanche"},
	{ID: "matic-network", Symbol: "MATIC", Name: "Polygon"},
}

// FindCoin matches a supported coin by symbol, name or id (case-insensitive).
func FindCoin(query string) (Coin, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Coin{}, false
	}
	return lo.Find(SupportedCoins, func(c Coin) bool {
		return strings.ToLower(c.Symbol) == q || strings.ToLower(c.Name) == q || c.ID == q
	})
}

func SupportedCoinIDs() []string {
	return lo.Map(SupportedCoins, func(c Coin, _ int) string { return c.ID })
}

// Quote is a USD price snapshot for one coin.
type Quote struct {
	Coin      Coin      `json:"coin"`
	PriceUSD  float64   `json:"price_usd"`
	Change24h float64   `json:"change_24h"`
	MarketCap float64   `json:"market_cap,omitempty"`
	Volume24h float64   `json:"volume_24h,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}
