package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"feeflow/config"
	"feeflow/models"
)

// stubSource serves a fixed set of order records in endpoint-sized pages and
// a fixed fee feed.
type stubSource struct {
	orders []models.RawRecord
	fees   []models.RawRecord
	feeErr error
}

func (s *stubSource) FetchOrderPage(ctx context.Context, page, pageSize int) (models.Envelope, error) {
	start := (page - 1) * pageSize
	if start >= len(s.orders) {
		return []any{}, nil
	}
	end := start + pageSize
	if end > len(s.orders) {
		end = len(s.orders)
	}
	items := make([]any, 0, end-start)
	for _, rec := range s.orders[start:end] {
		items = append(items, map[string]any(rec))
	}
	return items, nil
}

func (s *stubSource) FetchFeeHistory(ctx context.Context, limit int, symbol string) ([]models.RawRecord, error) {
	return s.fees, s.feeErr
}

func order(symbol, status, source string, qty, price float64, created any) models.RawRecord {
	rec := models.RawRecord{
		"symbol":          symbol,
		"status":          status,
		"filled_quantity": qty,
		"price":           price,
	}
	if source != "" {
		rec["source"] = source
	}
	if created != nil {
		rec["created_at"] = created
	}
	return rec
}

func calcConfig() config.CalculatorConfig {
	return config.CalculatorConfig{
		AlphaTier:          0,
		APISourcedOnly:     true,
		CountUnknownOrigin: true,
		FeeHistoryLimit:    500,
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestCalculateVolume(t *testing.T) {
	src := &stubSource{orders: []models.RawRecord{
		order("BTCUSDT", "FILLED", "API", 0.001, 50000, "2024-03-01T10:00:00"),
		order("ETHUSDT", "PARTIALLY_FILLED", "API", 0.1, 3000, "2024-03-01T11:00:00"),
		order("BTCUSDT", "CANCELLED", "API", 1, 50000, "2024-03-01T12:00:00"),
		order("BTCUSDT", "FILLED", "API", 0, 50000, "2024-03-01T13:00:00"),
	}}

	report, err := NewCalculator(src, calcConfig()).Calculate(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if report.OrderCount != 2 {
		t.Errorf("OrderCount = %d, want 2", report.OrderCount)
	}
	if report.TotalVolume != 350 {
		t.Errorf("TotalVolume = %v, want 350", report.TotalVolume)
	}
	if got := report.BySymbol["BTCUSDT"]; got != 50 {
		t.Errorf("BySymbol[BTCUSDT] = %v, want 50", got)
	}
	if got := report.BySymbol["ETHUSDT"]; got != 300 {
		t.Errorf("BySymbol[ETHUSDT] = %v, want 300", got)
	}
	if want := 350 * 0.05 / 100; report.EstimatedFees != want {
		t.Errorf("EstimatedFees = %v, want %v", report.EstimatedFees, want)
	}
	if !report.SourceObserved {
		t.Error("SourceObserved = false despite source fields in the pull")
	}
	if report.RunID == "" {
		t.Error("RunID is empty")
	}
}

func TestCalculateWindowInclusiveBounds(t *testing.T) {
	src := &stubSource{orders: []models.RawRecord{
		order("BTCUSDT", "FILLED", "API", 1, 100, "2024-03-01T00:00:00"),
		order("BTCUSDT", "FILLED", "API", 1, 200, "2024-03-02T00:00:00"),
		order("BTCUSDT", "FILLED", "API", 1, 400, "2024-03-03T00:00:00"),
	}}

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, ReferenceZone)
	until := time.Date(2024, 3, 2, 0, 0, 0, 0, ReferenceZone)
	report, err := NewCalculator(src, calcConfig()).Calculate(context.Background(), Query{
		Since: timePtr(since),
		Until: timePtr(until),
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if report.OrderCount != 2 || report.TotalVolume != 300 {
		t.Errorf("got count=%d volume=%v, want both boundary orders (count=2, volume=300)",
			report.OrderCount, report.TotalVolume)
	}
}

func TestCalculateUnparseableTimestampPolicy(t *testing.T) {
	orders := []models.RawRecord{
		order("BTCUSDT", "FILLED", "API", 1, 100, "2024-03-01T10:00:00"),
		order("BTCUSDT", "FILLED", "API", 1, 200, nil),
		order("BTCUSDT", "FILLED", "API", 1, 400, "not a date"),
	}

	// Unwindowed: membership needs no timestamp, all three count.
	report, err := NewCalculator(&stubSource{orders: orders}, calcConfig()).
		Calculate(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if report.OrderCount != 3 || report.TotalVolume != 700 {
		t.Errorf("unwindowed: count=%d volume=%v, want 3/700", report.OrderCount, report.TotalVolume)
	}

	// Windowed: unverifiable membership excludes the record.
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, ReferenceZone)
	report, err = NewCalculator(&stubSource{orders: orders}, calcConfig()).
		Calculate(context.Background(), Query{Since: timePtr(since)})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if report.OrderCount != 1 || report.TotalVolume != 100 {
		t.Errorf("windowed: count=%d volume=%v, want 1/100", report.OrderCount, report.TotalVolume)
	}
}

func TestCalculateOriginPolicy(t *testing.T) {
	orders := []models.RawRecord{
		order("BTCUSDT", "FILLED", "API", 1, 100, "2024-03-01T10:00:00"),
		order("BTCUSDT", "FILLED", "WEB", 1, 200, "2024-03-01T11:00:00"),
		order("BTCUSDT", "FILLED", "TELEGRAM", 1, 400, "2024-03-01T12:00:00"),
		order("BTCUSDT", "FILLED", "", 1, 800, "2024-03-01T13:00:00"),
	}

	cases := []struct {
		name         string
		apiOnly      bool
		countUnknown bool
		wantCount    int
		wantVolume   float64
	}{
		{"api only, unknown counted", true, true, 3, 1300},
		{"api only, unknown excluded", true, false, 1, 100},
		{"all volume", false, true, 4, 1500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := calcConfig()
			cfg.APISourcedOnly = tc.apiOnly
			cfg.CountUnknownOrigin = tc.countUnknown

			report, err := NewCalculator(&stubSource{orders: orders}, cfg).
				Calculate(context.Background(), Query{})
			if err != nil {
				t.Fatalf("Calculate: %v", err)
			}
			if report.OrderCount != tc.wantCount || report.TotalVolume != tc.wantVolume {
				t.Errorf("count=%d volume=%v, want %d/%v",
					report.OrderCount, report.TotalVolume, tc.wantCount, tc.wantVolume)
			}
		})
	}
}

func TestCalculateSourceObservedOnFilteredRecord(t *testing.T) {
	// The source field appears only on a record outside the window; the flag
	// still reflects the whole pull.
	src := &stubSource{orders: []models.RawRecord{
		order("BTCUSDT", "FILLED", "API", 1, 100, "2020-01-01T00:00:00"),
		order("BTCUSDT", "FILLED", "", 1, 200, "2024-03-01T10:00:00"),
	}}

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, ReferenceZone)
	report, err := NewCalculator(src, calcConfig()).
		Calculate(context.Background(), Query{Since: timePtr(since)})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if !report.SourceObserved {
		t.Error("SourceObserved = false, want true from the out-of-window record")
	}
	if report.OrderCount != 1 {
		t.Errorf("OrderCount = %d, want 1", report.OrderCount)
	}
}

func TestCalculateSymbolFilter(t *testing.T) {
	src := &stubSource{orders: []models.RawRecord{
		order("BTCUSDT", "FILLED", "API", 1, 100, "2024-03-01T10:00:00"),
		order("ETHUSDT", "FILLED", "API", 1, 200, "2024-03-01T11:00:00"),
	}}

	report, err := NewCalculator(src, calcConfig()).
		Calculate(context.Background(), Query{Symbol: "btcusdt"})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if report.OrderCount != 1 || report.TotalVolume != 100 {
		t.Errorf("count=%d volume=%v, want case-insensitive match on BTCUSDT only", report.OrderCount, report.TotalVolume)
	}
	if _, ok := report.BySymbol["BTCUSDT"]; !ok {
		t.Error("BySymbol keyed by filter case instead of the record's raw symbol")
	}
}

func TestCalculateActualFees(t *testing.T) {
	src := &stubSource{
		orders: []models.RawRecord{
			order("BTCUSDT", "FILLED", "API", 1, 100, "2024-03-01T10:00:00"),
		},
		fees: []models.RawRecord{
			{"fee_amount": 0.5, "created_at": "2024-03-01T10:00:00"},
			{"fee": "0.25", "timestamp": "2024-03-01T11:00:00"},
			{"fee_amount": 9.0, "created_at": "2020-01-01T00:00:00"}, // outside window
			{"fee_amount": "n/a", "created_at": "2024-03-01T12:00:00"},
			{"created_at": "2024-03-01T13:00:00"}, // no amount at all
		},
	}

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, ReferenceZone)
	report, err := NewCalculator(src, calcConfig()).Calculate(context.Background(), Query{
		Since:             timePtr(since),
		IncludeActualFees: true,
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if report.ActualFees.Status != models.FeeReconAvailable {
		t.Fatalf("ActualFees.Status = %q, want available", report.ActualFees.Status)
	}
	if report.ActualFees.Total != 0.75 {
		t.Errorf("ActualFees.Total = %v, want 0.75", report.ActualFees.Total)
	}
	if report.ActualFees.RecordCount != 2 {
		t.Errorf("ActualFees.RecordCount = %d, want 2", report.ActualFees.RecordCount)
	}
}

func TestCalculateActualFeesUnavailable(t *testing.T) {
	src := &stubSource{
		orders: []models.RawRecord{
			order("BTCUSDT", "FILLED", "API", 1, 100, "2024-03-01T10:00:00"),
		},
		feeErr: errors.New("boom"),
	}

	report, err := NewCalculator(src, calcConfig()).
		Calculate(context.Background(), Query{IncludeActualFees: true})
	if err != nil {
		t.Fatalf("Calculate should not fail on fee feed error: %v", err)
	}

	if report.ActualFees.Status != models.FeeReconUnavailable {
		t.Errorf("ActualFees.Status = %q, want unavailable", report.ActualFees.Status)
	}
	if report.TotalVolume != 100 || report.OrderCount != 1 {
		t.Errorf("volume figures degraded by fee feed failure: count=%d volume=%v",
			report.OrderCount, report.TotalVolume)
	}
}

func TestCalculateActualFeesSkipped(t *testing.T) {
	src := &stubSource{
		orders: []models.RawRecord{
			order("BTCUSDT", "FILLED", "API", 1, 100, "2024-03-01T10:00:00"),
		},
		fees: []models.RawRecord{{"fee_amount": 0.5, "created_at": "2024-03-01T10:00:00"}},
	}

	report, err := NewCalculator(src, calcConfig()).
		Calculate(context.Background(), Query{IncludeActualFees: false})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if report.ActualFees.Status != "" {
		t.Errorf("ActualFees.Status = %q, want empty when reconciliation is off", report.ActualFees.Status)
	}
}

func TestCalculateTierClamped(t *testing.T) {
	cfg := calcConfig()
	cfg.AlphaTier = 99

	src := &stubSource{orders: []models.RawRecord{
		order("BTCUSDT", "FILLED", "API", 1, 1000, "2024-03-01T10:00:00"),
	}}

	report, err := NewCalculator(src, cfg).Calculate(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if report.Tier != models.TierAlpha6 {
		t.Errorf("Tier = %d, want clamp to %d", report.Tier, models.TierAlpha6)
	}
	if !report.TierDefaulted {
		t.Error("TierDefaulted = false, want true for out-of-range tier")
	}
	if want := 1000 * 0.03 / 100; report.EstimatedFees != want {
		t.Errorf("EstimatedFees = %v, want %v", report.EstimatedFees, want)
	}
}

func TestCalculateOrderFetchErrorFatal(t *testing.T) {
	src := &failingSource{}
	if _, err := NewCalculator(src, calcConfig()).Calculate(context.Background(), Query{}); err == nil {
		t.Fatal("Calculate succeeded despite order history failure")
	}
}

type failingSource struct{}

func (failingSource) FetchOrderPage(context.Context, int, int) (models.Envelope, error) {
	return nil, errors.New("boom")
}

func (failingSource) FetchFeeHistory(context.Context, int, string) ([]models.RawRecord, error) {
	return nil, nil
}
