package history

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/cashier/go/internal/events"
	"github.com/mcdev12/cashier/go/internal/models"
)

func TestRecorderKeepsOneResultPerDraw(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(10)
	rec := NewRecorder(repo)
	at := time.Date(2024, 5, 1, 14, 3, 0, 0, time.UTC)

	rec.OnDrawComplete(ctx, events.DrawCompletePayload{TransactionID: "t1", CompletedDrawNumber: 42, WinningNumber: 32, CompletedAt: at, Origin: "a"})
	rec.OnDrawComplete(ctx, events.DrawCompletePayload{TransactionID: "t2", CompletedDrawNumber: 42, WinningNumber: 5, CompletedAt: at, Origin: "b"})
	rec.OnDrawComplete(ctx, events.DrawCompletePayload{TransactionID: "t3", CompletedDrawNumber: 43, WinningNumber: 0, CompletedAt: at.Add(3 * time.Minute), Origin: "a"})

	got, err := rec.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.DrawResult{
		{DrawNumber: 43, WinningNumber: 0, Color: models.ColorGreen, TransactionID: "t3", Origin: "a", CompletedAt: at.Add(3 * time.Minute)},
		{DrawNumber: 42, WinningNumber: 32, Color: models.ColorRed, TransactionID: "t1", Origin: "a", CompletedAt: at},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryRepositoryEvictsOldest(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(2)
	for n := 1; n <= 3; n++ {
		_ = repo.Record(ctx, models.DrawResult{DrawNumber: n}, nil)
	}
	got, _ := repo.Recent(ctx, 0)
	if len(got) != 2 || got[0].DrawNumber != 3 || got[1].DrawNumber != 2 {
		t.Fatalf("unexpected results %+v", got)
	}
}

func TestInsertQuery(t *testing.T) {
	sqlStr, args, err := insertQuery(models.DrawResult{DrawNumber: 7, WinningNumber: 11, Color: models.ColorBlack}, json.RawMessage(`{"remote":false}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(sqlStr, "INSERT INTO draw_results") || !strings.Contains(sqlStr, "$7") {
		t.Fatalf("unexpected sql %q", sqlStr)
	}
	if !strings.HasSuffix(sqlStr, "ON CONFLICT (draw_number) DO NOTHING") {
		t.Fatalf("insert is not idempotent: %q", sqlStr)
	}
	if len(args) != 7 || args[0] != 7 || args[2] != "black" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestRecentQuery(t *testing.T) {
	sqlStr, _, err := recentQuery(20)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sqlStr, "ORDER BY draw_number DESC LIMIT 20") {
		t.Fatalf("unexpected sql %q", sqlStr)
	}
}
