// src/services/interfaces.go
package services

import (
	"context"
	"errors"

	"github.com/username/ledgerguard/src/models"
)

// Define common service errors
var (
	ErrPlanAlreadyApplied = errors.New("import plan was already applied")
	ErrEmptyBatch         = errors.New("import batch is empty")
)

// ImportOptions tune one import batch.
type ImportOptions struct {
	// LearnPatterns enables merchant pattern learning from this batch.
	LearnPatterns bool
	// LearnThreshold is the minimum categorization confidence a record needs
	// before its merchant pattern is learned. Zero means the configured
	// default.
	LearnThreshold float64
	// DocumentHash/DocumentName identify the source statement, when known,
	// for file-level dedup.
	DocumentHash string
	DocumentName string
}

// ImportService is the write path of the trust boundary. Every mutation runs
// preview-first: Preview computes an ImportPlan without writing, Apply
// commits a previously returned plan. There is no code path that writes
// without a plan.
type ImportService interface {
	Preview(ctx context.Context, records []models.EnrichedRecord, opts ImportOptions) (*ImportPlan, error)
	Apply(ctx context.Context, plan *ImportPlan) (*models.ImportSummary, error)
}

// PortfolioService exposes the valuation resolver and its derived views.
// An empty asOfDate means "now".
type PortfolioService interface {
	ResolveValue(ctx context.Context, holdingID int64, asOfDate string) (*models.ResolvedValue, error)
	Snapshot(ctx context.Context, asOfDate string) ([]models.SnapshotRow, error)
	Allocation(ctx context.Context, asOfDate string) ([]models.AllocationRow, error)
	Staleness(ctx context.Context, asOfDate string, maxAgeDays int) ([]models.StalenessRow, error)
	RecordValue(ctx context.Context, value *models.HoldingValue) (int64, error)
	InvalidateCache()
}

// QueryResult is the bounded result set of one guarded agent query.
type QueryResult struct {
	SQL            string   `json:"sql"`
	EffectiveLimit int      `json:"effective_limit"`
	Columns        []string `json:"columns"`
	Rows           [][]any  `json:"rows"`
	RowCount       int      `json:"row_count"`
}

// QueryService validates and executes ad-hoc read-only queries on behalf of
// the agent.
type QueryService interface {
	Execute(ctx context.Context, queryText string, limitHint int) (*QueryResult, error)
}
