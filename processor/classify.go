package processor

import (
	"strings"

	"feeflow/models"
)

// Probe orders are a tested contract: they encode which field aliases win
// when the API sends more than one name for the same concept.
var (
	SourceKeys     = []string{"source", "order_source", "origin"}
	QuantityKeys   = []string{"filled_quantity", "filled_size"}
	PriceKeys      = []string{"price", "order_price"}
	SymbolKeys     = []string{"symbol", "asset_id"}
	FeeAmountKeys  = []string{"fee_amount", "fee"}
	FeeCreatedKeys = []string{"created_at", "timestamp"}
)

// Origin classifies how an order was placed.
type Origin int

const (
	// OriginUnknown means no origin field was present on the record.
	OriginUnknown Origin = iota
	// OriginAPI means the order was placed programmatically.
	OriginAPI
	// OriginManual means the order came from the app or web UI.
	OriginManual
)

var apiSourceValues = map[string]bool{"API": true, "1": true, "TRUE": true}

var manualSourceValues = map[string]bool{
	"WEB": true, "IOS": true, "ANDROID": true, "MANUAL": true, "0": true, "FALSE": true,
}

// RecordOrigin inspects the origin field aliases in priority order; the
// first present non-nil value decides. A value matching neither vocabulary
// reports unknown, same as an absent field.
func RecordOrigin(rec models.RawRecord) Origin {
	s, ok := rec.ProbeString(SourceKeys...)
	if !ok {
		return OriginUnknown
	}
	s = strings.ToUpper(s)
	if apiSourceValues[s] {
		return OriginAPI
	}
	if manualSourceValues[s] {
		return OriginManual
	}
	return OriginUnknown
}

// OriginObserved reports whether any origin field is present on the record
// at all, regardless of its value.
func OriginObserved(rec models.RawRecord) bool {
	_, ok := rec.Probe(SourceKeys...)
	return ok
}

// IsFilled reports whether the record contributes fills. Anything other
// than FILLED or PARTIALLY_FILLED, including a missing status, does not.
func IsFilled(rec models.RawRecord) bool {
	s, ok := rec.ProbeString("status")
	if !ok {
		return false
	}
	switch strings.ToUpper(s) {
	case "FILLED", "PARTIALLY_FILLED":
		return true
	default:
		return false
	}
}

// NotionalValue is the order's notional volume: filled quantity times
// price. Missing or non-numeric fields contribute zero, which excludes the
// record from volume downstream.
func NotionalValue(rec models.RawRecord) float64 {
	qty, _ := rec.ProbeFloat(QuantityKeys...)
	price, _ := rec.ProbeFloat(PriceKeys...)
	return qty * price
}

// RecordSymbol returns the trimmed instrument symbol, or "" when absent.
// Callers compare case-insensitively but key accumulations by this raw
// form.
func RecordSymbol(rec models.RawRecord) string {
	s, _ := rec.ProbeString(SymbolKeys...)
	return s
}
