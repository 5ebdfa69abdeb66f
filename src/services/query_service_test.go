// src/services/query_service_test.go
package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/username/ledgerguard/src/models"
	"github.com/username/ledgerguard/src/security/queryguard"
	"github.com/username/ledgerguard/src/store"
)

func seedQueryData(t *testing.T, st *store.Store, count int) {
	t.Helper()
	ctx := context.Background()
	account, err := st.GetOrCreateAccount(ctx, "checking-main", "")
	if err != nil {
		t.Fatalf("creating account: %v", err)
	}
	for i := 0; i < count; i++ {
		if _, err := st.InsertTransaction(ctx, &models.Transaction{
			Date:        "2024-03-01",
			Merchant:    "Corner Cafe",
			Description: "corner cafe",
			Amount:      mustAmount(t, "-4.50"),
			AccountID:   account.ID,
			Fingerprint: "fp-" + string(rune('a'+i)),
		}); err != nil {
			t.Fatalf("inserting transaction %d: %v", i, err)
		}
	}
}

func TestExecuteGuardedQuery(t *testing.T) {
	st, db := testStore(t)
	seedQueryData(t, st, 3)
	svc := NewQueryService(db, queryguard.New(200, 1000), 5*time.Second)

	result, err := svc.Execute(context.Background(), "SELECT merchant, amount FROM transactions", 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", result.RowCount)
	}
	if len(result.Columns) != 2 || result.Columns[0] != "merchant" {
		t.Errorf("Columns = %v", result.Columns)
	}
	if result.EffectiveLimit != 200 {
		t.Errorf("EffectiveLimit = %d, want 200", result.EffectiveLimit)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("Rows = %d, want 3", len(result.Rows))
	}
	if merchant, ok := result.Rows[0][0].(string); !ok || merchant != "Corner Cafe" {
		t.Errorf("first merchant = %v, want Corner Cafe", result.Rows[0][0])
	}
}

func TestExecuteRejectionsReachCaller(t *testing.T) {
	st, db := testStore(t)
	seedQueryData(t, st, 1)
	svc := NewQueryService(db, queryguard.New(200, 1000), 5*time.Second)

	_, err := svc.Execute(context.Background(), "DELETE FROM transactions", 0)
	var guardErr *queryguard.GuardError
	if !errors.As(err, &guardErr) {
		t.Fatalf("expected *GuardError, got %v", err)
	}
	if guardErr.Code != queryguard.ReasonForbiddenKeyword {
		t.Errorf("Code = %q, want forbidden_keyword", guardErr.Code)
	}

	// Nothing was deleted.
	result, err := svc.Execute(context.Background(), "SELECT COUNT(*) AS n FROM transactions", 0)
	if err != nil {
		t.Fatalf("Execute count: %v", err)
	}
	if result.RowCount != 1 {
		t.Fatalf("count query returned no rows")
	}
}

func TestExecuteHardRowStop(t *testing.T) {
	st, db := testStore(t)
	seedQueryData(t, st, 5)
	svc := NewQueryService(db, queryguard.New(2, 1000), 5*time.Second)

	result, err := svc.Execute(context.Background(), "SELECT id FROM transactions", 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.RowCount != 2 {
		t.Errorf("RowCount = %d, want the default limit of 2", result.RowCount)
	}
}

func TestExecuteLimitHint(t *testing.T) {
	st, db := testStore(t)
	seedQueryData(t, st, 5)
	svc := NewQueryService(db, queryguard.New(200, 1000), 5*time.Second)

	result, err := svc.Execute(context.Background(), "SELECT id FROM transactions", 3)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.EffectiveLimit != 3 || result.RowCount != 3 {
		t.Errorf("limit hint not honored: effective=%d rows=%d", result.EffectiveLimit, result.RowCount)
	}
}
