package pricing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"ventasvoz/internal/store/memory"
)

func TestRecordPriceOpensFirstEntry(t *testing.T) {
	repo := memory.New()
	ledger := New(repo)
	ctx := context.Background()

	if err := ledger.RecordPriceIfChanged(ctx, "prod-1", decimal.NewFromInt(250), time.Now().UTC()); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	price, err := ledger.CurrentPrice(ctx, "prod-1")
	if err != nil {
		t.Fatalf("current price failed: %v", err)
	}
	if price == nil || !price.Equal(decimal.NewFromInt(250)) {
		t.Fatalf("expected current price 250, got %v", price)
	}
}

func TestRecordSamePriceIsNoop(t *testing.T) {
	repo := memory.New()
	ledger := New(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := ledger.RecordPriceIfChanged(ctx, "prod-1", decimal.NewFromInt(250), now); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := ledger.RecordPriceIfChanged(ctx, "prod-1", decimal.NewFromInt(250), now.Add(time.Hour)); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	history, err := ledger.History(ctx, "prod-1", 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one entry for unchanged price, got %d", len(history))
	}
}

func TestPriceChangeClosesPreviousEntry(t *testing.T) {
	repo := memory.New()
	ledger := New(repo)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := ledger.RecordPriceIfChanged(ctx, "prod-1", decimal.NewFromInt(250), now); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := ledger.RecordPriceIfChanged(ctx, "prod-1", decimal.NewFromInt(300), now.Add(time.Hour)); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	history, err := ledger.History(ctx, "prod-1", 10)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two entries, got %d", len(history))
	}
	if !history[0].Price.Equal(decimal.NewFromInt(300)) || history[0].ValidTo != nil {
		t.Fatalf("expected most recent entry to be the open 300 entry, got %+v", history[0])
	}
	if !history[1].Price.Equal(decimal.NewFromInt(250)) || history[1].ValidTo == nil {
		t.Fatalf("expected previous entry to be closed, got %+v", history[1])
	}
}

func TestSingleOpenEntryUnderConcurrentRecords(t *testing.T) {
	repo := memory.New()
	ledger := New(repo)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			price := decimal.NewFromInt(int64(100 + i%3))
			_ = ledger.RecordPriceIfChanged(ctx, "prod-1", price, time.Now().UTC())
		}(i)
	}
	wg.Wait()

	history, err := ledger.History(ctx, "prod-1", 100)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	open := 0
	for _, entry := range history {
		if entry.ValidTo == nil {
			open++
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly one open entry, got %d", open)
	}
}
