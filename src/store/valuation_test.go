// src/store/valuation_test.go
package store

import (
	"context"
	"testing"
	"time"

	"github.com/username/ledgerguard/src/models"
)

func recordValue(t *testing.T, st *Store, holdingID, sourceID int64, asOfDate, marketValue string, ingestedAt time.Time) {
	t.Helper()
	_, err := st.RecordHoldingValue(context.Background(), &models.HoldingValue{
		HoldingID:   holdingID,
		SourceID:    sourceID,
		AsOfDate:    asOfDate,
		MarketValue: d(t, marketValue),
		Currency:    "EUR",
		IngestedAt:  ingestedAt,
	})
	if err != nil {
		t.Fatalf("RecordHoldingValue: %v", err)
	}
}

func TestResolveHoldingValueNewestEligible(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	holding := testHolding(t, st, "broker-1", "World ETF")
	api := testSource(t, st, "api")

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	recordValue(t, st, holding, api.ID, "2024-03-01", "1000", base)
	recordValue(t, st, holding, api.ID, "2024-03-10", "1100", base.AddDate(0, 0, 9))
	recordValue(t, st, holding, api.ID, "2024-03-20", "1200", base.AddDate(0, 0, 19))

	tests := []struct {
		name      string
		asOf      string
		wantValue string
		wantDate  string
	}{
		{"empty as-of takes newest", "", "1200", "2024-03-20"},
		{"mid-month cutoff", "2024-03-15", "1100", "2024-03-10"},
		{"exact as-of date eligible", "2024-03-10", "1100", "2024-03-10"},
		{"before second snapshot", "2024-03-05", "1000", "2024-03-01"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rv, err := st.ResolveHoldingValue(ctx, holding, tc.asOf)
			if err != nil {
				t.Fatalf("ResolveHoldingValue: %v", err)
			}
			if rv == nil {
				t.Fatalf("expected a resolved value")
			}
			if !rv.MarketValue.Equal(d(t, tc.wantValue)) {
				t.Errorf("MarketValue = %s, want %s", rv.MarketValue, tc.wantValue)
			}
			if rv.AsOfDate != tc.wantDate {
				t.Errorf("AsOfDate = %s, want %s", rv.AsOfDate, tc.wantDate)
			}
		})
	}
}

func TestResolveHoldingValueNoEligibleSnapshot(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	holding := testHolding(t, st, "broker-1", "World ETF")
	api := testSource(t, st, "api")
	recordValue(t, st, holding, api.ID, "2024-03-10", "1100", time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))

	rv, err := st.ResolveHoldingValue(ctx, holding, "2024-03-01")
	if err != nil {
		t.Fatalf("ResolveHoldingValue: %v", err)
	}
	if rv != nil {
		t.Fatalf("future snapshot leaked into an earlier as-of: %+v", rv)
	}

	rv, err = st.ResolveHoldingValue(ctx, 9999, "")
	if err != nil {
		t.Fatalf("ResolveHoldingValue unknown holding: %v", err)
	}
	if rv != nil {
		t.Fatalf("expected nil for unknown holding")
	}
}

func TestResolveHoldingValuePriorityBeatsRecency(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	holding := testHolding(t, st, "broker-1", "World ETF")
	statement := testSource(t, st, "statement")
	manual := testSource(t, st, "manual")

	// The manual row is two weeks fresher, but the statement source is more
	// authoritative and must win.
	recordValue(t, st, holding, statement.ID, "2024-03-01", "1000", time.Date(2024, 3, 2, 8, 0, 0, 0, time.UTC))
	recordValue(t, st, holding, manual.ID, "2024-03-15", "1500", time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC))

	rv, err := st.ResolveHoldingValue(ctx, holding, "")
	if err != nil {
		t.Fatalf("ResolveHoldingValue: %v", err)
	}
	if rv == nil {
		t.Fatalf("expected a resolved value")
	}
	if rv.SourceName != "statement" {
		t.Errorf("SourceName = %q, want statement", rv.SourceName)
	}
	if !rv.MarketValue.Equal(d(t, "1000")) {
		t.Errorf("MarketValue = %s, want 1000", rv.MarketValue)
	}
}

func TestResolveHoldingValueInsertionOrderIndependent(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	holding := testHolding(t, st, "broker-1", "World ETF")
	api := testSource(t, st, "api")

	// Snapshots arrive out of order; resolution depends only on the data.
	recordValue(t, st, holding, api.ID, "2024-03-20", "1200", time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC))
	recordValue(t, st, holding, api.ID, "2024-03-01", "1000", time.Date(2024, 3, 21, 8, 0, 0, 0, time.UTC))

	rv, err := st.ResolveHoldingValue(ctx, holding, "")
	if err != nil {
		t.Fatalf("ResolveHoldingValue: %v", err)
	}
	if rv.AsOfDate != "2024-03-20" {
		t.Errorf("AsOfDate = %s, want 2024-03-20 (later-loaded older row must not win)", rv.AsOfDate)
	}
}

func TestResolveHoldingValueIngestionBreaksTies(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	holding := testHolding(t, st, "broker-1", "World ETF")
	api := testSource(t, st, "api")

	// Same source, same as-of date: the correction loaded later wins.
	recordValue(t, st, holding, api.ID, "2024-03-10", "1100", time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))
	recordValue(t, st, holding, api.ID, "2024-03-10", "1150", time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC))

	rv, err := st.ResolveHoldingValue(ctx, holding, "")
	if err != nil {
		t.Fatalf("ResolveHoldingValue: %v", err)
	}
	if !rv.MarketValue.Equal(d(t, "1150")) {
		t.Errorf("MarketValue = %s, want the later-ingested 1150", rv.MarketValue)
	}
}

func classifyTestHolding(t *testing.T, st *Store, holdingID int64, mainClass string) {
	t.Helper()
	ctx := context.Background()
	var instrumentID int64
	if err := st.db.QueryRowContext(ctx, `SELECT instrument_id FROM holdings WHERE id = ?`, holdingID).Scan(&instrumentID); err != nil {
		t.Fatalf("looking up instrument: %v", err)
	}
	class, err := st.GetOrCreateAssetClass(ctx, mainClass, nil)
	if err != nil {
		t.Fatalf("GetOrCreateAssetClass: %v", err)
	}
	if err := st.ClassifyInstrument(ctx, instrumentID, class.ID); err != nil {
		t.Fatalf("ClassifyInstrument: %v", err)
	}
}

func TestPortfolioSnapshotIncludesUnvalued(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	valued := testHolding(t, st, "broker-1", "World ETF")
	unvalued := testHolding(t, st, "broker-1", "New Fund")
	classifyTestHolding(t, st, valued, "Equity")
	api := testSource(t, st, "api")
	recordValue(t, st, valued, api.ID, "2024-03-10", "1100", time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC))

	snapshot, err := st.PortfolioSnapshot(ctx, "")
	if err != nil {
		t.Fatalf("PortfolioSnapshot: %v", err)
	}
	if len(snapshot) != 2 {
		t.Fatalf("snapshot rows = %d, want 2", len(snapshot))
	}

	byID := make(map[int64]models.SnapshotRow)
	for _, row := range snapshot {
		byID[row.HoldingID] = row
	}
	valuedRow := byID[valued]
	if valuedRow.AssetClass != "Equity" {
		t.Errorf("AssetClass = %q, want Equity", valuedRow.AssetClass)
	}
	if valuedRow.MarketValue == nil || !valuedRow.MarketValue.Equal(d(t, "1100")) {
		t.Errorf("MarketValue = %v, want 1100", valuedRow.MarketValue)
	}
	unvaluedRow := byID[unvalued]
	if unvaluedRow.AssetClass != "Unclassified" {
		t.Errorf("AssetClass = %q, want Unclassified", unvaluedRow.AssetClass)
	}
	if unvaluedRow.MarketValue != nil || unvaluedRow.SourceName != nil {
		t.Errorf("unvalued holding carries value columns: %+v", unvaluedRow)
	}
}

func TestPortfolioSnapshotExcludesClosed(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	holding := testHolding(t, st, "broker-1", "World ETF")
	if err := st.CloseHolding(ctx, holding); err != nil {
		t.Fatalf("CloseHolding: %v", err)
	}

	snapshot, err := st.PortfolioSnapshot(ctx, "")
	if err != nil {
		t.Fatalf("PortfolioSnapshot: %v", err)
	}
	if len(snapshot) != 0 {
		t.Fatalf("closed holding still in snapshot")
	}
}

func TestAllocationSumsToHundred(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	equity := testHolding(t, st, "broker-1", "World ETF")
	bonds := testHolding(t, st, "broker-1", "Bond Fund")
	unclassified := testHolding(t, st, "broker-1", "Mystery Fund")
	classifyTestHolding(t, st, equity, "Equity")
	classifyTestHolding(t, st, bonds, "Bonds")

	api := testSource(t, st, "api")
	ingested := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	recordValue(t, st, equity, api.ID, "2024-03-10", "600", ingested)
	recordValue(t, st, bonds, api.ID, "2024-03-10", "300", ingested)
	recordValue(t, st, unclassified, api.ID, "2024-03-10", "100", ingested)

	allocation, err := st.Allocation(ctx, "")
	if err != nil {
		t.Fatalf("Allocation: %v", err)
	}
	if len(allocation) != 3 {
		t.Fatalf("buckets = %d, want 3", len(allocation))
	}

	totalPct := 0.0
	byClass := make(map[string]models.AllocationRow)
	for _, row := range allocation {
		totalPct += row.Percent
		byClass[row.AssetClass] = row
	}
	if totalPct < 99.999 || totalPct > 100.001 {
		t.Errorf("percentages sum to %f, want 100", totalPct)
	}
	if pct := byClass["Equity"].Percent; pct != 60 {
		t.Errorf("Equity percent = %f, want 60", pct)
	}
	if pct := byClass["Unclassified"].Percent; pct != 10 {
		t.Errorf("Unclassified percent = %f, want 10", pct)
	}
	if byClass["Bonds"].Holdings != 1 {
		t.Errorf("Bonds holdings = %d, want 1", byClass["Bonds"].Holdings)
	}
}

func TestAllocationZeroTotal(t *testing.T) {
	st := testDB(t)
	holding := testHolding(t, st, "broker-1", "New Fund")
	_ = holding

	allocation, err := st.Allocation(context.Background(), "")
	if err != nil {
		t.Fatalf("Allocation: %v", err)
	}
	if len(allocation) != 1 {
		t.Fatalf("buckets = %d, want 1", len(allocation))
	}
	if allocation[0].Percent != 0 {
		t.Errorf("Percent = %f, want 0 for an unvalued portfolio", allocation[0].Percent)
	}
}

func TestStalenessNeverValuedFirst(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	stale := testHolding(t, st, "broker-1", "Old Fund")
	never := testHolding(t, st, "broker-1", "New Fund")
	fresh := testHolding(t, st, "broker-1", "World ETF")

	api := testSource(t, st, "api")
	recordValue(t, st, stale, api.ID, "2024-01-01", "500", time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))
	recordValue(t, st, fresh, api.ID, "2024-03-01", "900", time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))

	report, err := st.Staleness(ctx, "2024-03-10", 30)
	if err != nil {
		t.Fatalf("Staleness: %v", err)
	}
	if len(report) != 2 {
		t.Fatalf("stale holdings = %d, want 2 (fresh one excluded)", len(report))
	}
	if report[0].HoldingID != never {
		t.Errorf("first row = holding %d, want the never-valued one", report[0].HoldingID)
	}
	if report[0].LastAsOfDate != nil || report[0].AgeDays != nil {
		t.Errorf("never-valued holding has dates: %+v", report[0])
	}
	if report[1].HoldingID != stale {
		t.Errorf("second row = holding %d, want the stale one", report[1].HoldingID)
	}
	if report[1].AgeDays == nil || *report[1].AgeDays != 69 {
		t.Errorf("AgeDays = %v, want 69", report[1].AgeDays)
	}
}
