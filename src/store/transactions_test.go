// src/store/transactions_test.go
package store

import (
	"context"
	"errors"
	"testing"

	"github.com/username/ledgerguard/src/models"
)

func insertTestTransaction(t *testing.T, st *Store, accountID int64, date, fingerprint string) int64 {
	t.Helper()
	id, err := st.InsertTransaction(context.Background(), &models.Transaction{
		Date:        date,
		Merchant:    "Corner Cafe",
		Description: "corner cafe",
		Amount:      d(t, "-4.50"),
		AccountID:   accountID,
		Fingerprint: fingerprint,
	})
	if err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	return id
}

func TestInsertTransactionDuplicateFingerprint(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	account := testAccount(t, st, "checking-main")

	insertTestTransaction(t, st, account.ID, "2024-03-01", "fp-1")

	_, err := st.InsertTransaction(ctx, &models.Transaction{
		Date:        "2024-03-01",
		Merchant:    "Corner Cafe",
		Description: "corner cafe",
		Amount:      d(t, "-4.50"),
		AccountID:   account.ID,
		Fingerprint: "fp-1",
	})
	if !errors.Is(err, ErrDuplicateFingerprint) {
		t.Fatalf("expected ErrDuplicateFingerprint, got %v", err)
	}

	exists, err := st.FingerprintExists(ctx, "fp-1")
	if err != nil {
		t.Fatalf("FingerprintExists: %v", err)
	}
	if !exists {
		t.Errorf("fingerprint reported missing after insert")
	}
}

func TestTransactionAmountRoundTrip(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	account := testAccount(t, st, "checking-main")

	id, err := st.InsertTransaction(ctx, &models.Transaction{
		Date:        "2024-03-01",
		Merchant:    "Cinema",
		Description: "cinema",
		Amount:      d(t, "-10.01"),
		AccountID:   account.ID,
		Fingerprint: "fp-exact",
	})
	if err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}
	tx, err := st.GetTransactionByID(ctx, id)
	if err != nil {
		t.Fatalf("GetTransactionByID: %v", err)
	}
	// Money is stored as text, so no float drift on the way back.
	if !tx.Amount.Equal(d(t, "-10.01")) {
		t.Errorf("Amount = %s, want -10.01", tx.Amount)
	}
	if tx.Metadata != "{}" {
		t.Errorf("Metadata = %q, want empty object default", tx.Metadata)
	}
}

func TestUpdateTransactionCategory(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	account := testAccount(t, st, "checking-main")
	category := testCategory(t, st, "Dining")

	confidence := 0.9
	id, err := st.InsertTransaction(ctx, &models.Transaction{
		Date:          "2024-03-01",
		Merchant:      "Corner Cafe",
		Description:   "corner cafe",
		Amount:        d(t, "-4.50"),
		AccountID:     account.ID,
		CategoryID:    &category.ID,
		Fingerprint:   "fp-correct",
		CategorizedBy: models.CategorizedByPattern,
		Confidence:    &confidence,
	})
	if err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}

	other := testCategory(t, st, "Coffee")
	if err := st.UpdateTransactionCategory(ctx, id, &other.ID); err != nil {
		t.Fatalf("UpdateTransactionCategory: %v", err)
	}

	tx, err := st.GetTransactionByID(ctx, id)
	if err != nil {
		t.Fatalf("GetTransactionByID: %v", err)
	}
	if tx.CategoryID == nil || *tx.CategoryID != other.ID {
		t.Errorf("CategoryID = %v, want %d", tx.CategoryID, other.ID)
	}
	if tx.CategorizedBy != models.CategorizedByUser {
		t.Errorf("CategorizedBy = %q, want %q", tx.CategorizedBy, models.CategorizedByUser)
	}
	if tx.Confidence != nil {
		t.Errorf("Confidence not cleared after manual correction")
	}

	// Clearing the category is also a valid correction.
	if err := st.UpdateTransactionCategory(ctx, id, nil); err != nil {
		t.Fatalf("clearing category: %v", err)
	}
	tx, err = st.GetTransactionByID(ctx, id)
	if err != nil {
		t.Fatalf("GetTransactionByID: %v", err)
	}
	if tx.CategoryID != nil {
		t.Errorf("CategoryID = %v, want nil", tx.CategoryID)
	}
}

func TestUpdateTransactionCategoryNotFound(t *testing.T) {
	st := testDB(t)
	if err := st.UpdateTransactionCategory(context.Background(), 9999, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListTransactionsFilters(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()
	checking := testAccount(t, st, "checking-main")
	savings := testAccount(t, st, "savings-01")
	category := testCategory(t, st, "Dining")

	insertTestTransaction(t, st, checking.ID, "2024-03-01", "fp-a")
	insertTestTransaction(t, st, checking.ID, "2024-03-15", "fp-b")
	insertTestTransaction(t, st, savings.ID, "2024-03-10", "fp-c")
	if _, err := st.InsertTransaction(ctx, &models.Transaction{
		Date: "2024-04-01", Merchant: "Cafe", Description: "cafe",
		Amount: d(t, "-2.00"), AccountID: checking.ID, CategoryID: &category.ID,
		Fingerprint: "fp-d", CategorizedBy: models.CategorizedByInput,
	}); err != nil {
		t.Fatalf("InsertTransaction: %v", err)
	}

	tests := []struct {
		name   string
		filter TransactionFilter
		want   []string // fingerprints, newest first
	}{
		{"no filter", TransactionFilter{}, []string{"fp-d", "fp-b", "fp-c", "fp-a"}},
		{"by account", TransactionFilter{AccountID: &savings.ID}, []string{"fp-c"}},
		{"date range", TransactionFilter{FromDate: "2024-03-05", ToDate: "2024-03-31"}, []string{"fp-b", "fp-c"}},
		{"uncategorized only", TransactionFilter{UncategorizedOnly: true}, []string{"fp-b", "fp-c", "fp-a"}},
		{"limit", TransactionFilter{Limit: 2}, []string{"fp-d", "fp-b"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := st.ListTransactions(ctx, tc.filter)
			if err != nil {
				t.Fatalf("ListTransactions: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tc.want))
			}
			for i, fingerprint := range tc.want {
				if got[i].Fingerprint != fingerprint {
					t.Errorf("row %d = %q, want %q", i, got[i].Fingerprint, fingerprint)
				}
			}
		})
	}
}

func TestInsertDocumentDuplicateHash(t *testing.T) {
	st := testDB(t)
	ctx := context.Background()

	doc, err := st.InsertDocument(ctx, "hash-1", "march.csv")
	if err != nil {
		t.Fatalf("InsertDocument: %v", err)
	}
	if doc.FileName != "march.csv" {
		t.Errorf("FileName = %q", doc.FileName)
	}

	if _, err := st.InsertDocument(ctx, "hash-1", "march-copy.csv"); !errors.Is(err, ErrDuplicateDocument) {
		t.Fatalf("expected ErrDuplicateDocument, got %v", err)
	}

	exists, err := st.DocumentExists(ctx, "hash-1")
	if err != nil {
		t.Fatalf("DocumentExists: %v", err)
	}
	if !exists {
		t.Errorf("document reported missing after insert")
	}
}
