package domain

import "time"

// RawPosition is a position record as broker APIs commonly return it, with
// string-typed numeric fields. Parsed and validated at the boundary by the
// position normalizer so internal components never handle raw strings.
type RawPosition struct {
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	CurrentPrice   string `json:"current_price"`
	LastdayPrice   string `json:"lastday_price"`
	MarketValue    string `json:"market_value"`
	CostBasis      string `json:"cost_basis"`
	UnrealizedPL   string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
}

// AccountSnapshot is the broker's view of an account at a point in time.
type AccountSnapshot struct {
	Equity         float64   `json:"equity"`
	Cash           float64   `json:"cash"`
	LastEquity     float64   `json:"last_equity"` // Equity at previous trading day close
	PortfolioValue float64   `json:"portfolio_value"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}
