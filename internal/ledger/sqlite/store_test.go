package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dvloznov/finance-analytics/internal/jobs"
	"github.com/dvloznov/finance-analytics/internal/jobs/jobstest"
	"github.com/dvloznov/finance-analytics/internal/ledger"
	"github.com/dvloznov/finance-analytics/internal/ledger/ledgertest"
	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_LedgerContract(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) ledger.Store { return openTestStore(t) })
}

func TestStore_JobStoreContract(t *testing.T) {
	jobstest.Run(t, func(t *testing.T) jobs.JobStore { return openTestStore(t) })
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		s, err := Open(context.Background(), path, zerolog.Nop())
		if err != nil {
			t.Fatalf("Open #%d failed: %v", i+1, err)
		}
		s.Close()
	}
}
