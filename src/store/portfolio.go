// src/store/portfolio.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/username/ledgerguard/src/models"
)

// CreateInstrument registers an instrument that can be held.
func (s *Store) CreateInstrument(ctx context.Context, inst *models.Instrument) (int64, error) {
	externalIDs := inst.ExternalIDs
	if externalIDs == "" {
		externalIDs = "{}"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO instruments (name, symbol, exchange, currency, vehicle_type, external_ids)
		VALUES (?, ?, ?, ?, ?, ?)`,
		inst.Name, optString(inst.Symbol), optString(inst.Exchange), inst.Currency, inst.VehicleType, externalIDs)
	if err != nil {
		return 0, fmt.Errorf("insert instrument: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("instrument last insert id: %w", err)
	}
	return id, nil
}

// GetOrCreateAssetClass returns the taxonomy node for (mainClass, subClass).
func (s *Store) GetOrCreateAssetClass(ctx context.Context, mainClass string, subClass *string) (*models.AssetClass, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, main_class, sub_class FROM asset_classes
		WHERE main_class = ? AND ((sub_class IS NULL AND ? IS NULL) OR sub_class = ?)`,
		mainClass, subcategoryArg(subClass), subcategoryArg(subClass))
	class, err := scanAssetClass(row)
	if err == nil {
		return class, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO asset_classes (main_class, sub_class) VALUES (?, ?)`,
		mainClass, subcategoryArg(subClass))
	if err != nil {
		return nil, fmt.Errorf("insert asset class: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("asset class last insert id: %w", err)
	}
	return &models.AssetClass{ID: id, MainClass: mainClass, SubClass: subClass}, nil
}

// ClassifyInstrument sets the instrument's primary asset class. Re-classifying
// replaces the previous primary link; an instrument with no link is
// explicitly unclassified, which is a valid state, not an error.
func (s *Store) ClassifyInstrument(ctx context.Context, instrumentID, assetClassID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM instrument_classifications WHERE instrument_id = ? AND is_primary = 1`, instrumentID)
	if err != nil {
		return fmt.Errorf("clear instrument classification: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO instrument_classifications (instrument_id, asset_class_id, is_primary)
		VALUES (?, ?, 1)`, instrumentID, assetClassID)
	if err != nil {
		return fmt.Errorf("insert instrument classification: %w", err)
	}
	return nil
}

// CreateHolding opens a position of an instrument in an account.
func (s *Store) CreateHolding(ctx context.Context, h *models.Holding) (int64, error) {
	status := h.Status
	if status == "" {
		status = models.HoldingActive
	}
	side := h.Side
	if side == "" {
		side = "long"
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO holdings (account_id, instrument_id, status, side, cost_basis, cost_currency)
		VALUES (?, ?, ?, ?, ?, ?)`,
		h.AccountID, h.InstrumentID, status, side, decimalArg(h.CostBasis), optString(h.CostCurrency))
	if err != nil {
		return 0, fmt.Errorf("insert holding: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("holding last insert id: %w", err)
	}
	return id, nil
}

// CloseHolding marks a holding closed; it drops out of the active views but
// keeps its valuation history.
func (s *Store) CloseHolding(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE holdings SET status = ? WHERE id = ?`, models.HoldingClosed, id)
	if err != nil {
		return fmt.Errorf("close holding: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("holding rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAssetSourceByName resolves a valuation source by its configured name.
func (s *Store) GetAssetSourceByName(ctx context.Context, name string) (*models.AssetSource, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, priority FROM asset_sources WHERE name = ?`, name)
	var src models.AssetSource
	err := row.Scan(&src.ID, &src.Name, &src.Priority)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan asset source: %w", err)
	}
	return &src, nil
}

// ListAssetSources returns all sources ordered by authority.
func (s *Store) ListAssetSources(ctx context.Context) ([]models.AssetSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, priority FROM asset_sources ORDER BY priority ASC`)
	if err != nil {
		return nil, fmt.Errorf("query asset sources: %w", err)
	}
	defer rows.Close()

	sources := make([]models.AssetSource, 0)
	for rows.Next() {
		var src models.AssetSource
		if err := rows.Scan(&src.ID, &src.Name, &src.Priority); err != nil {
			return nil, fmt.Errorf("scan asset source: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset sources: %w", err)
	}
	return sources, nil
}

// RecordHoldingValue appends one valuation snapshot. The table is
// append-only: snapshots accumulate and are never overwritten.
func (s *Store) RecordHoldingValue(ctx context.Context, v *models.HoldingValue) (int64, error) {
	var asOfTime any
	if v.AsOfTime != nil {
		asOfTime = v.AsOfTime.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	var documentID any
	if v.DocumentID != nil {
		documentID = *v.DocumentID
	}
	ingestedAt := nowUTC()
	if !v.IngestedAt.IsZero() {
		ingestedAt = v.IngestedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO holding_values (holding_id, source_id, as_of_date, as_of_time, quantity,
			price, market_value, currency, fx_rate, ingested_at, document_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.HoldingID, v.SourceID, v.AsOfDate, asOfTime, decimalArg(v.Quantity),
		decimalArg(v.Price), v.MarketValue.String(), v.Currency, decimalArg(v.FxRate),
		ingestedAt, documentID)
	if err != nil {
		return 0, fmt.Errorf("insert holding value: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("holding value last insert id: %w", err)
	}
	return id, nil
}

// UpsertPortfolioTarget sets the desired weight for an asset class, whole
// portfolio when accountID is nil.
func (s *Store) UpsertPortfolioTarget(ctx context.Context, t *models.PortfolioTarget) error {
	var accountID any
	if t.AccountID != nil {
		accountID = *t.AccountID
	}

	// Manual upsert: UNIQUE indexes treat NULL account_id rows (whole
	// portfolio scope) as distinct, so ON CONFLICT cannot cover them.
	var existingID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM portfolio_targets
		WHERE asset_class_id = ? AND ((account_id IS NULL AND ? IS NULL) OR account_id = ?)`,
		t.AssetClassID, accountID, accountID).Scan(&existingID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO portfolio_targets (account_id, asset_class_id, target_weight, as_of_date)
			VALUES (?, ?, ?, ?)`,
			accountID, t.AssetClassID, t.TargetWeight, t.AsOfDate)
		if err != nil {
			return fmt.Errorf("insert portfolio target: %w", err)
		}
	case err != nil:
		return fmt.Errorf("lookup portfolio target: %w", err)
	default:
		_, err = s.db.ExecContext(ctx, `
			UPDATE portfolio_targets SET target_weight = ?, as_of_date = ? WHERE id = ?`,
			t.TargetWeight, t.AsOfDate, existingID)
		if err != nil {
			return fmt.Errorf("update portfolio target: %w", err)
		}
	}
	return nil
}

// ListPortfolioTargets returns all targets, whole-portfolio rows first.
func (s *Store) ListPortfolioTargets(ctx context.Context) ([]models.PortfolioTarget, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, asset_class_id, target_weight, as_of_date
		FROM portfolio_targets
		ORDER BY account_id IS NOT NULL, account_id, asset_class_id`)
	if err != nil {
		return nil, fmt.Errorf("query portfolio targets: %w", err)
	}
	defer rows.Close()

	targets := make([]models.PortfolioTarget, 0)
	for rows.Next() {
		var t models.PortfolioTarget
		var accountID sql.NullInt64
		if err := rows.Scan(&t.ID, &accountID, &t.AssetClassID, &t.TargetWeight, &t.AsOfDate); err != nil {
			return nil, fmt.Errorf("scan portfolio target: %w", err)
		}
		if accountID.Valid {
			t.AccountID = &accountID.Int64
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio targets: %w", err)
	}
	return targets, nil
}

func scanAssetClass(row rowScanner) (*models.AssetClass, error) {
	var c models.AssetClass
	var subClass sql.NullString
	err := row.Scan(&c.ID, &c.MainClass, &subClass)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan asset class: %w", err)
	}
	if subClass.Valid {
		c.SubClass = &subClass.String
	}
	return &c, nil
}

func optString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
