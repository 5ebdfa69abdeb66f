// src/models/portfolio.go
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Holding status values.
const (
	HoldingActive = "active"
	HoldingClosed = "closed"
)

// Instrument is something that can be held: a fund, an equity, a
// cash-equivalent.
type Instrument struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Symbol      *string `json:"symbol,omitempty"`
	Exchange    *string `json:"exchange,omitempty"`
	Currency    string  `json:"currency"`
	VehicleType string  `json:"vehicle_type"`
	ExternalIDs string  `json:"external_ids"` // JSON map of identifier scheme -> value
}

// AssetClass is one bucket of the allocation taxonomy.
type AssetClass struct {
	ID        int64   `json:"id"`
	MainClass string  `json:"main_class"`
	SubClass  *string `json:"sub_class,omitempty"`
}

// InstrumentClassification links an instrument to its (primary) asset class.
// An instrument with no classification row is explicitly "unclassified",
// never an error.
type InstrumentClassification struct {
	ID           int64 `json:"id"`
	InstrumentID int64 `json:"instrument_id"`
	AssetClassID int64 `json:"asset_class_id"`
	IsPrimary    bool  `json:"is_primary"`
}

// Holding is one position in one account. Active holdings are the unit the
// valuation resolver operates on.
type Holding struct {
	ID           int64            `json:"id"`
	AccountID    int64            `json:"account_id"`
	InstrumentID int64            `json:"instrument_id"`
	Status       string           `json:"status"`
	Side         string           `json:"side"`
	CostBasis    *decimal.Decimal `json:"cost_basis,omitempty"`
	CostCurrency *string          `json:"cost_currency,omitempty"`
}

// AssetSource ranks valuation data origins. Lower priority number means more
// authoritative; the ordering is fixed at configuration time.
type AssetSource struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// HoldingValue is one append-only valuation snapshot for a holding.
type HoldingValue struct {
	ID          int64            `json:"id"`
	HoldingID   int64            `json:"holding_id"`
	SourceID    int64            `json:"source_id"`
	AsOfDate    string           `json:"as_of_date"` // YYYY-MM-DD
	AsOfTime    *time.Time       `json:"as_of_time,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	MarketValue decimal.Decimal  `json:"market_value"`
	Currency    string           `json:"currency"`
	FxRate      *decimal.Decimal `json:"fx_rate,omitempty"`
	IngestedAt  time.Time        `json:"ingested_at"`
	DocumentID  *int64           `json:"document_id,omitempty"`
}

// PortfolioTarget is a desired allocation weight, whole-portfolio when
// AccountID is nil. Consumed by analysis tooling outside this core.
type PortfolioTarget struct {
	ID           int64   `json:"id"`
	AccountID    *int64  `json:"account_id,omitempty"`
	AssetClassID int64   `json:"asset_class_id"`
	TargetWeight float64 `json:"target_weight"`
	AsOfDate     string  `json:"as_of_date"`
}

// ResolvedValue is the single authoritative valuation the resolver picked for
// a holding, joined with source metadata.
type ResolvedValue struct {
	HoldingID      int64            `json:"holding_id"`
	InstrumentName string           `json:"instrument_name"`
	SourceName     string           `json:"source_name"`
	SourcePriority int              `json:"source_priority"`
	AsOfDate       string           `json:"as_of_date"`
	Quantity       *decimal.Decimal `json:"quantity,omitempty"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	MarketValue    decimal.Decimal  `json:"market_value"`
	Currency       string           `json:"currency"`
	IngestedAt     time.Time        `json:"ingested_at"`
}

// SnapshotRow is one line of the portfolio snapshot view: every active
// holding, valued or not.
type SnapshotRow struct {
	HoldingID      int64            `json:"holding_id"`
	AccountID      int64            `json:"account_id"`
	InstrumentName string           `json:"instrument_name"`
	Symbol         *string          `json:"symbol,omitempty"`
	AssetClass     string           `json:"asset_class"` // "Unclassified" when no classification exists
	SourceName     *string          `json:"source_name,omitempty"`
	AsOfDate       *string          `json:"as_of_date,omitempty"`
	MarketValue    *decimal.Decimal `json:"market_value,omitempty"`
	Currency       *string          `json:"currency,omitempty"`
}

// AllocationRow is one asset-class bucket of the allocation breakdown.
// Percentages across all buckets, the unclassified one included, sum to 100.
type AllocationRow struct {
	AssetClass string          `json:"asset_class"`
	SubClass   *string         `json:"sub_class,omitempty"`
	Value      decimal.Decimal `json:"value"`
	Percent    float64         `json:"percent"`
	Holdings   int             `json:"holdings"`
}

// StalenessRow reports how out of date a holding's resolved valuation is.
// LastAsOfDate is nil for holdings that were never valued.
type StalenessRow struct {
	HoldingID      int64   `json:"holding_id"`
	InstrumentName string  `json:"instrument_name"`
	LastAsOfDate   *string `json:"last_as_of_date,omitempty"`
	AgeDays        *int    `json:"age_days,omitempty"`
}
