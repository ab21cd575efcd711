package models

import "time"

// FeeReconStatus tells apart "the fee feed answered" from "the fee feed was
// unreachable". Zero fees observed is Available with a zero total.
type FeeReconStatus string

const (
	FeeReconAvailable   FeeReconStatus = "available"
	FeeReconUnavailable FeeReconStatus = "unavailable"
)

// ActualFees is the reconciliation block of a report: fees as independently
// reported by the brokerage's fee-history feed over the same window.
type ActualFees struct {
	Status      FeeReconStatus `json:"status"`
	Total       float64        `json:"total"`
	RecordCount int            `json:"record_count"`
}

// VolumeReport is the output of one Calculate call. It is built fresh per
// invocation and never mutated after return.
type VolumeReport struct {
	RunID string `json:"run_id"`

	Since  *time.Time `json:"since,omitempty"`
	Until  *time.Time `json:"until,omitempty"`
	Symbol string     `json:"symbol,omitempty"`

	TotalVolume float64            `json:"total_volume"`
	BySymbol    map[string]float64 `json:"by_symbol"`
	OrderCount  int                `json:"order_count"`

	// SourceObserved reports whether any origin field appeared anywhere in
	// the unfiltered pull, so callers can tell "no API trades" from "this
	// venue never reports origin".
	SourceObserved bool `json:"source_available"`

	Tier          AlphaTier `json:"alpha_tier"`
	TierDefaulted bool      `json:"tier_defaulted"`
	FeeRatePct    float64   `json:"fee_rate_pct"`
	EstimatedFees float64   `json:"estimated_fees"`

	ActualFees ActualFees `json:"actual_fees"`
}
