package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func seed(d *AnomalyDetector, pair string, prices ...float64) {
	for _, p := range prices {
		d.AddPrice(pair, decimal.NewFromFloat(p))
	}
}

func TestCheckPrice(t *testing.T) {
	tests := []struct {
		name         string
		history      []float64
		price        float64
		wantValid    bool
		wantSeverity Severity
	}{
		{"insufficient_history", []float64{100, 101, 99}, 500, true, SeverityLow},
		{"critical_deviation", []float64{100, 101, 99, 100, 102}, 130, false, SeverityCritical},
		{"within_bounds", []float64{100, 101, 99, 100, 102}, 101, true, ""},
		{"short_window", []float64{100, 100, 100, 100, 100, 88, 88, 88}, 100, false, SeverityMedium},
		{"general_deviation", []float64{100, 100, 100, 100, 100, 100, 100, 115, 115, 115}, 116, false, SeverityHigh},
		{"z_score", []float64{100, 101, 99, 100, 101, 99}, 103, false, SeverityHigh},
		{"non_positive", []float64{100, 101, 99, 100, 102}, 0, false, SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewAnomalyDetector(DefaultAnomalyConfig())
			seed(d, "X", tt.history...)

			got := d.CheckPrice("X", decimal.NewFromFloat(tt.price))
			if got.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v (reason %q)", got.Valid, tt.wantValid, got.Reason)
			}
			if got.Severity != tt.wantSeverity {
				t.Errorf("Severity = %s, want %s", got.Severity, tt.wantSeverity)
			}
			if !got.Valid && got.Reason == "" {
				t.Error("rejection without reason")
			}
		})
	}
}

func TestCheckPriceIsDeterministic(t *testing.T) {
	d := NewAnomalyDetector(DefaultAnomalyConfig())
	seed(d, "X", 100, 101, 99, 100, 102)

	first := d.CheckPrice("X", decimal.NewFromInt(111))
	for i := 0; i < 10; i++ {
		if got := d.CheckPrice("X", decimal.NewFromInt(111)); got != first {
			t.Fatalf("CheckPrice changed between calls: %+v vs %+v", got, first)
		}
	}
}

func TestRingEvictsOldest(t *testing.T) {
	cfg := DefaultAnomalyConfig()
	cfg.HistorySize = 3
	d := NewAnomalyDetector(cfg)
	seed(d, "X", 1, 2, 3, 4, 5)

	h := d.History("X")
	if len(h) != 3 {
		t.Fatalf("len(History) = %d, want 3", len(h))
	}
	for i, want := range []int64{3, 4, 5} {
		if !h[i].Price.Equal(decimal.NewFromInt(want)) {
			t.Errorf("History[%d] = %s, want %d", i, h[i].Price, want)
		}
	}
}

func TestPurgeDropsOldPoints(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := NewAnomalyDetector(DefaultAnomalyConfig())

	d.AddPriceAt("X", decimal.NewFromInt(1), now.Add(-2*time.Hour))
	d.AddPriceAt("X", decimal.NewFromInt(2), now.Add(-90*time.Minute))
	d.AddPriceAt("X", decimal.NewFromInt(3), now.Add(-time.Minute))
	d.AddPriceAt("Y", decimal.NewFromInt(1), now.Add(-3*time.Hour))

	if removed := d.Purge(now); removed != 3 {
		t.Errorf("Purge() removed %d, want 3", removed)
	}
	if got := len(d.History("X")); got != 1 {
		t.Errorf("len(History(X)) = %d, want 1", got)
	}
	if d.Pairs() != 1 {
		t.Errorf("Pairs() = %d, want 1 after empty pair is forgotten", d.Pairs())
	}
}

func TestDetectorConcurrentUse(t *testing.T) {
	d := NewAnomalyDetector(DefaultAnomalyConfig())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				d.AddPrice("X", decimal.NewFromInt(int64(100+j%3)))
				d.CheckPrice("X", decimal.NewFromInt(101))
			}
		}(i)
	}
	wg.Wait()

	if got := len(d.History("X")); got != 100 {
		t.Errorf("len(History) = %d, want 100", got)
	}
}
