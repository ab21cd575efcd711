package reader

import (
	"context"
	"fmt"

	"feeflow/logger"
	"feeflow/models"
)

// PageSize is the fixed page size of the order-history endpoint.
const PageSize = 100

// HistorySource is the paginated feed collaborator supplying raw order and
// fee records. The engine calls it strictly sequentially; reentrancy across
// concurrent Calculate calls is the implementation's own contract.
type HistorySource interface {
	FetchOrderPage(ctx context.Context, page, pageSize int) (models.Envelope, error)
	FetchFeeHistory(ctx context.Context, limit int, symbol string) ([]models.RawRecord, error)
}

// FetchRawOrderHistory pulls order-history pages starting at page 1 until a
// short or empty page, or until cap records have been accumulated (cap <= 0
// means all). Only map-shaped entries are kept, but the raw page length
// still drives termination. Transport errors abort the whole fetch: volume
// computed from partial history would be misleading. There is no retry or
// backoff at this layer.
func FetchRawOrderHistory(ctx context.Context, src HistorySource, cap int) ([]models.RawRecord, error) {
	log := logger.GetLogger().WithComponent("history_reader")

	var out []models.RawRecord
	for page := 1; ; page++ {
		env, err := src.FetchOrderPage(ctx, page, PageSize)
		if err != nil {
			return nil, fmt.Errorf("order history page %d: %w", page, err)
		}

		records, pageLen := Flatten(env)
		logger.IncrementOrderPage(pageLen)
		log.WithFields(logger.Fields{
			"page":    page,
			"entries": pageLen,
			"records": len(records),
		}).Debug("order history page fetched")

		if pageLen == 0 {
			break
		}
		out = append(out, records...)
		if cap > 0 && len(out) >= cap {
			return out[:cap], nil
		}
		if pageLen < PageSize {
			break
		}
	}
	return out, nil
}

// Flatten extracts the record list from any of the envelope shapes the
// endpoint has shipped: a bare array, {"items": [...]}, or {"data": ...}
// with the list sometimes nested one level further. It returns the
// map-shaped records plus the raw entry count of the page; non-map entries
// are discarded but still count toward pagination.
func Flatten(env models.Envelope) ([]models.RawRecord, int) {
	items := envelopeItems(env)
	records := make([]models.RawRecord, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			records = append(records, models.RawRecord(m))
		}
	}
	return records, len(items)
}

func envelopeItems(env models.Envelope) []any {
	switch v := env.(type) {
	case []any:
		return v
	case map[string]any:
		data, ok := v["data"]
		if !ok {
			data = any(v)
		}
		switch d := data.(type) {
		case []any:
			return d
		case map[string]any:
			if items, ok := d["items"].([]any); ok {
				return items
			}
			if items, ok := d["data"].([]any); ok {
				return items
			}
		}
	}
	return nil
}
