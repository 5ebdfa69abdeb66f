// src/services/query_service.go
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/username/ledgerguard/src/logger"
	"github.com/username/ledgerguard/src/security/queryguard"
)

type queryServiceImpl struct {
	readDB  *sql.DB // read-only handle; query_only pragma set
	guard   *queryguard.Guard
	timeout time.Duration
}

// NewQueryService executes guarded agent queries. readDB must be the
// read-only database handle: even a statement that slipped past the guard
// cannot write through it.
func NewQueryService(readDB *sql.DB, guard *queryguard.Guard, timeout time.Duration) QueryService {
	return &queryServiceImpl{readDB: readDB, guard: guard, timeout: timeout}
}

// Execute validates queryText through the guard and runs the bounded result.
// Guard rejections come back as *queryguard.GuardError before anything
// touches storage.
func (s *queryServiceImpl) Execute(ctx context.Context, queryText string, limitHint int) (*QueryResult, error) {
	validated, err := s.guard.Validate(queryText, limitHint)
	if err != nil {
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rows, err := s.readDB.QueryContext(ctx, validated.SQL)
	if err != nil {
		return nil, fmt.Errorf("execute guarded query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("guarded query columns: %w", err)
	}

	result := &QueryResult{
		SQL:            validated.SQL,
		EffectiveLimit: validated.EffectiveLimit,
		Columns:        columns,
		Rows:           make([][]any, 0),
	}

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan guarded query row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		result.Rows = append(result.Rows, values)

		// Hard stop at the effective limit even if the statement's
		// LIMIT clause somehow returns more.
		if len(result.Rows) >= validated.EffectiveLimit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guarded query rows: %w", err)
	}
	result.RowCount = len(result.Rows)

	logger.L.Debug("Guarded query executed", "rows", result.RowCount, "effectiveLimit", result.EffectiveLimit)
	return result, nil
}
