package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "cashier.db"))
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := open(t)

			if _, err := s.Get(ctx, KeySelectedDrawNumber); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			if err := s.Set(ctx, KeySelectedDrawNumber, "45"); err != nil {
				t.Fatal(err)
			}
			if err := s.Set(ctx, KeySelectedDrawNumber, "46"); err != nil {
				t.Fatal(err)
			}
			if err := s.Set(ctx, KeyCurrentDrawNumber, "41"); err != nil {
				t.Fatal(err)
			}
			if v, err := s.Get(ctx, KeySelectedDrawNumber); err != nil || v != "46" {
				t.Fatalf("Get = %q, %v; want overwritten value 46", v, err)
			}

			if err := s.Delete(ctx, SelectionKeys...); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx); err != nil {
				t.Fatalf("empty delete: %v", err)
			}
			if _, err := s.Get(ctx, KeySelectedDrawNumber); !errors.Is(err, ErrNotFound) {
				t.Fatalf("selection survived delete: %v", err)
			}
			if v, err := s.Get(ctx, KeyCurrentDrawNumber); err != nil || v != "41" {
				t.Fatalf("unrelated key lost: %q, %v", v, err)
			}
		})
	}
}

func TestSQLiteStorePersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cashier.db")

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, KeyOriginalCashAmount, "250.50"); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if v, err := s.Get(ctx, KeyOriginalCashAmount); err != nil || v != "250.50" {
		t.Fatalf("Get after reopen = %q, %v", v, err)
	}
}
