// src/store/valuation.go
//
// The valuation resolver. For any holding and as-of date, at most one
// holding_values row is "current". The total order over a holding's eligible
// rows (as_of_date <= requested) is:
//
//  1. source priority ascending  (lower number = more authoritative)
//  2. as-of date descending      (newest eligible snapshot)
//  3. ingestion time descending  (last-loaded wins among equals)
//
// Priority deliberately beats recency: a statement row from the 1st outranks
// a manual row from the 15th. The order is expressed as a window function so
// it holds regardless of row insertion order.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/ledgerguard/src/models"
)

// ResolveHoldingValue returns the single authoritative valuation for a
// holding as of the given date, or nil when no eligible snapshot exists.
// An empty asOfDate means "now": every stored snapshot is eligible.
func (s *Store) ResolveHoldingValue(ctx context.Context, holdingID int64, asOfDate string) (*models.ResolvedValue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT hv.holding_id, i.name, src.name, src.priority, hv.as_of_date,
			hv.quantity, hv.price, hv.market_value, hv.currency, hv.ingested_at
		FROM holding_values hv
		JOIN asset_sources src ON src.id = hv.source_id
		JOIN holdings h ON h.id = hv.holding_id
		JOIN instruments i ON i.id = h.instrument_id
		WHERE hv.holding_id = ?
		  AND (? = '' OR hv.as_of_date <= ?)
		ORDER BY src.priority ASC, hv.as_of_date DESC, hv.ingested_at DESC, hv.id DESC
		LIMIT 1`, holdingID, asOfDate, asOfDate)

	var rv models.ResolvedValue
	var quantity, price sql.NullString
	var marketValue, ingestedAt string
	err := row.Scan(&rv.HoldingID, &rv.InstrumentName, &rv.SourceName, &rv.SourcePriority,
		&rv.AsOfDate, &quantity, &price, &marketValue, &rv.Currency, &ingestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve holding value: %w", err)
	}
	if rv.Quantity, err = scanNullDecimal(quantity); err != nil {
		return nil, fmt.Errorf("parse resolved quantity: %w", err)
	}
	if rv.Price, err = scanNullDecimal(price); err != nil {
		return nil, fmt.Errorf("parse resolved price: %w", err)
	}
	if rv.MarketValue, err = decimal.NewFromString(marketValue); err != nil {
		return nil, fmt.Errorf("parse resolved market value %q: %w", marketValue, err)
	}
	rv.IngestedAt = parseTime(ingestedAt)
	return &rv, nil
}

// resolvedCTE ranks every eligible snapshot per holding by the resolver's
// total order; rn = 1 is the authoritative row. Shared by the derived views.
const resolvedCTE = `
	WITH resolved AS (
		SELECT hv.holding_id, hv.source_id, hv.as_of_date, hv.quantity, hv.price,
			hv.market_value, hv.currency,
			ROW_NUMBER() OVER (
				PARTITION BY hv.holding_id
				ORDER BY src.priority ASC, hv.as_of_date DESC, hv.ingested_at DESC, hv.id DESC
			) AS rn
		FROM holding_values hv
		JOIN asset_sources src ON src.id = hv.source_id
		WHERE (? = '' OR hv.as_of_date <= ?)
	)`

// PortfolioSnapshot returns one row per active holding with its resolved
// value. Holdings with no eligible snapshot still appear, with null value
// columns, so the portfolio is always fully enumerable.
func (s *Store) PortfolioSnapshot(ctx context.Context, asOfDate string) ([]models.SnapshotRow, error) {
	rows, err := s.db.QueryContext(ctx, resolvedCTE+`
		SELECT h.id, h.account_id, i.name, i.symbol,
			COALESCE(ac.main_class, 'Unclassified'),
			src.name, r.as_of_date, r.market_value, r.currency
		FROM holdings h
		JOIN instruments i ON i.id = h.instrument_id
		LEFT JOIN instrument_classifications ic ON ic.instrument_id = i.id AND ic.is_primary = 1
		LEFT JOIN asset_classes ac ON ac.id = ic.asset_class_id
		LEFT JOIN resolved r ON r.holding_id = h.id AND r.rn = 1
		LEFT JOIN asset_sources src ON src.id = r.source_id
		WHERE h.status = 'active'
		ORDER BY h.id ASC`, asOfDate, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("query portfolio snapshot: %w", err)
	}
	defer rows.Close()

	snapshot := make([]models.SnapshotRow, 0)
	for rows.Next() {
		var row models.SnapshotRow
		var symbol, sourceName, asOf, marketValue, currency sql.NullString
		if err := rows.Scan(&row.HoldingID, &row.AccountID, &row.InstrumentName, &symbol,
			&row.AssetClass, &sourceName, &asOf, &marketValue, &currency); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		if symbol.Valid {
			row.Symbol = &symbol.String
		}
		if sourceName.Valid {
			row.SourceName = &sourceName.String
		}
		if asOf.Valid {
			row.AsOfDate = &asOf.String
		}
		if row.MarketValue, err = scanNullDecimal(marketValue); err != nil {
			return nil, fmt.Errorf("parse snapshot market value: %w", err)
		}
		if currency.Valid {
			row.Currency = &currency.String
		}
		snapshot = append(snapshot, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snapshot, nil
}

// Allocation groups the resolved values of active holdings by asset class.
// Instruments with no classification land in an explicit "Unclassified"
// bucket, and holdings without an eligible snapshot contribute zero, so the
// percentages always reconcile to 100 across all buckets. Division is
// NULL-safe: an all-zero portfolio reports zero percentages.
func (s *Store) Allocation(ctx context.Context, asOfDate string) ([]models.AllocationRow, error) {
	rows, err := s.db.QueryContext(ctx, resolvedCTE+`
		SELECT COALESCE(ac.main_class, 'Unclassified'), ac.sub_class, r.market_value
		FROM holdings h
		JOIN instruments i ON i.id = h.instrument_id
		LEFT JOIN instrument_classifications ic ON ic.instrument_id = i.id AND ic.is_primary = 1
		LEFT JOIN asset_classes ac ON ac.id = ic.asset_class_id
		LEFT JOIN resolved r ON r.holding_id = h.id AND r.rn = 1
		WHERE h.status = 'active'
		ORDER BY ac.main_class IS NULL, ac.main_class, ac.sub_class, h.id`, asOfDate, asOfDate)
	if err != nil {
		return nil, fmt.Errorf("query allocation: %w", err)
	}
	defer rows.Close()

	// Bucket totals are summed in decimal to keep money exact; only the
	// final percentage is a float.
	type bucketKey struct {
		main string
		sub  string
	}
	order := make([]bucketKey, 0)
	buckets := make(map[bucketKey]*models.AllocationRow)
	total := decimal.Zero

	for rows.Next() {
		var main string
		var sub, marketValue sql.NullString
		if err := rows.Scan(&main, &sub, &marketValue); err != nil {
			return nil, fmt.Errorf("scan allocation row: %w", err)
		}

		key := bucketKey{main: main, sub: sub.String}
		bucket, ok := buckets[key]
		if !ok {
			bucket = &models.AllocationRow{AssetClass: main, Value: decimal.Zero}
			if sub.Valid {
				subCopy := sub.String
				bucket.SubClass = &subCopy
			}
			buckets[key] = bucket
			order = append(order, key)
		}
		bucket.Holdings++

		value, err := scanNullDecimal(marketValue)
		if err != nil {
			return nil, fmt.Errorf("parse allocation market value: %w", err)
		}
		if value != nil {
			bucket.Value = bucket.Value.Add(*value)
			total = total.Add(*value)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate allocation rows: %w", err)
	}

	allocation := make([]models.AllocationRow, 0, len(order))
	for _, key := range order {
		bucket := buckets[key]
		if !total.IsZero() {
			pct, _ := bucket.Value.Div(total).Mul(decimal.NewFromInt(100)).Float64()
			bucket.Percent = pct
		}
		allocation = append(allocation, *bucket)
	}
	return allocation, nil
}

// Staleness reports active holdings whose resolved valuation is older than
// maxAgeDays relative to asOfDate (empty = today). Holdings that were never
// valued sort first, then oldest first.
func (s *Store) Staleness(ctx context.Context, asOfDate string, maxAgeDays int) ([]models.StalenessRow, error) {
	reference := asOfDate
	if reference == "" {
		reference = time.Now().UTC().Format(DateLayout)
	}
	refDay, err := time.Parse(DateLayout, reference)
	if err != nil {
		return nil, fmt.Errorf("parse staleness reference date %q: %w", reference, err)
	}
	cutoff := refDay.AddDate(0, 0, -maxAgeDays).Format(DateLayout)

	rows, err := s.db.QueryContext(ctx, resolvedCTE+`
		SELECT h.id, i.name, r.as_of_date
		FROM holdings h
		JOIN instruments i ON i.id = h.instrument_id
		LEFT JOIN resolved r ON r.holding_id = h.id AND r.rn = 1
		WHERE h.status = 'active'
		  AND (r.as_of_date IS NULL OR r.as_of_date < ?)
		ORDER BY r.as_of_date IS NULL DESC, r.as_of_date ASC, h.id ASC`,
		asOfDate, asOfDate, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query staleness: %w", err)
	}
	defer rows.Close()

	report := make([]models.StalenessRow, 0)
	for rows.Next() {
		var row models.StalenessRow
		var lastAsOf sql.NullString
		if err := rows.Scan(&row.HoldingID, &row.InstrumentName, &lastAsOf); err != nil {
			return nil, fmt.Errorf("scan staleness row: %w", err)
		}
		if lastAsOf.Valid {
			row.LastAsOfDate = &lastAsOf.String
			if lastDay, err := time.Parse(DateLayout, lastAsOf.String); err == nil {
				age := int(refDay.Sub(lastDay).Hours() / 24)
				row.AgeDays = &age
			}
		}
		report = append(report, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staleness rows: %w", err)
	}
	return report, nil
}
