package processor

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"feeflow/models"
)

// ReferenceZone is the fixed civil timezone all instants are normalized to
// before comparison. Zone-naive inputs are assumed to already be expressed
// in it.
var ReferenceZone = time.FixedZone("UTC+05:30", 5*3600+30*60)

// Epoch values above this magnitude are taken as milliseconds.
const millisCutoff = 1e12

// Layouts carrying explicit zone information.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
}

// Zone-naive layouts, parsed directly in the reference zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseInstant converts an opaque timestamp value into a canonical instant
// in the reference zone. The second return is false when the value is
// unparseable; callers treat that as a first-class outcome, not an error.
func ParseInstant(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.In(ReferenceZone), true
	case float64:
		return fromUnix(t), true
	case float32:
		return fromUnix(float64(t)), true
	case int:
		return fromUnix(float64(t)), true
	case int64:
		return fromUnix(float64(t)), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return time.Time{}, false
		}
		return fromUnix(f), true
	case string:
		return parseInstantString(t)
	}
	return time.Time{}, false
}

// fromUnix interprets an epoch value, scaling milliseconds down to seconds
// when the magnitude gives them away.
func fromUnix(f float64) time.Time {
	if math.Abs(f) > millisCutoff {
		f /= 1000
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).In(ReferenceZone)
}

func parseInstantString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if models.IsNumericString(s) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		return fromUnix(f), true
	}

	if strings.HasSuffix(s, "Z") {
		s = strings.TrimSuffix(s, "Z") + "+00:00"
	}

	// Space-separated date-times are common; repair them to ISO form. The
	// dash count guards against mangling strings whose space precedes a
	// negative zone offset.
	if !strings.Contains(s, "T") && strings.Contains(s, " ") && strings.Count(s, "-") <= 2 {
		s = strings.Replace(s, " ", "T", 1)
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(ReferenceZone), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, ReferenceZone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
