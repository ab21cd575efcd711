package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"feeflow/config"
	"feeflow/logger"
	"feeflow/models"
	"feeflow/reader"
)

// PullArchiver persists the raw records of one pull for audit. Archiving is
// best-effort; failures never affect the report.
type PullArchiver interface {
	ArchivePull(ctx context.Context, runID string, records []models.RawRecord) (string, error)
}

// Query scopes one Calculate call. Nil time bounds mean unbounded; Limit
// caps the number of history records fetched (0 means all).
type Query struct {
	Since             *time.Time
	Until             *time.Time
	Symbol            string
	Limit             int
	IncludeActualFees bool
}

// Calculator computes notional volume and estimated fees from the raw
// order history of a HistorySource. All state is scoped to one Calculate
// call; concurrent calls are safe when the source itself is reentrant.
type Calculator struct {
	source             reader.HistorySource
	tier               models.AlphaTier
	tierDefaulted      bool
	apiSourcedOnly     bool
	countUnknownOrigin bool
	feeHistoryLimit    int
	archiver           PullArchiver
	log                *logger.Log
}

func NewCalculator(src reader.HistorySource, cfg config.CalculatorConfig) *Calculator {
	log := logger.GetLogger()

	tier, defaulted := models.ResolveTier(cfg.AlphaTier)
	if defaulted {
		log.WithComponent("calculator").WithFields(logger.Fields{
			"requested": cfg.AlphaTier,
			"resolved":  int(tier),
		}).Warn("alpha tier out of range, clamped")
	}

	return &Calculator{
		source:             src,
		tier:               tier,
		tierDefaulted:      defaulted,
		apiSourcedOnly:     cfg.APISourcedOnly,
		countUnknownOrigin: cfg.CountUnknownOrigin,
		feeHistoryLimit:    cfg.FeeHistoryLimit,
		log:                log,
	}
}

// SetArchiver enables archiving of each raw pull.
func (c *Calculator) SetArchiver(a PullArchiver) {
	c.archiver = a
}

// Calculate fetches the full order history and aggregates it into a volume
// report. A transport failure during the order pull fails the whole call;
// a failure of the optional fee-history feed only degrades reconciliation.
func (c *Calculator) Calculate(ctx context.Context, q Query) (*models.VolumeReport, error) {
	log := c.log.WithComponent("calculator")

	raw, err := reader.FetchRawOrderHistory(ctx, c.source, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetch order history: %w", err)
	}

	report := &models.VolumeReport{
		RunID:         uuid.NewString(),
		Since:         q.Since,
		Until:         q.Until,
		Symbol:        q.Symbol,
		BySymbol:      make(map[string]float64),
		Tier:          c.tier,
		TierDefaulted: c.tierDefaulted,
		FeeRatePct:    c.tier.Rate(),
	}

	if c.archiver != nil {
		if path, err := c.archiver.ArchivePull(ctx, report.RunID, raw); err != nil {
			log.WithError(err).Warn("failed to archive raw pull")
		} else {
			log.WithFields(logger.Fields{"path": path, "records": len(raw)}).Debug("raw pull archived")
		}
	}

	windowed := q.Since != nil || q.Until != nil
	symbolFilter := strings.ToUpper(strings.TrimSpace(q.Symbol))

	for _, rec := range raw {
		if OriginObserved(rec) {
			report.SourceObserved = true
		}

		created, parsed := ParseInstant(rec["created_at"])
		// A record whose timestamp cannot be read counts toward an
		// unscoped pull but never toward a window: its membership there
		// cannot be verified.
		if windowed && !parsed {
			continue
		}
		if parsed {
			if q.Since != nil && created.Before(*q.Since) {
				continue
			}
			if q.Until != nil && created.After(*q.Until) {
				continue
			}
		}

		sym := RecordSymbol(rec)
		if symbolFilter != "" && strings.ToUpper(sym) != symbolFilter {
			continue
		}
		if !IsFilled(rec) {
			continue
		}
		if c.apiSourcedOnly && !c.originIncluded(rec) {
			continue
		}

		vol := NotionalValue(rec)
		if vol <= 0 {
			continue
		}

		report.TotalVolume += vol
		report.OrderCount++
		if sym != "" {
			report.BySymbol[sym] += vol
		}
	}

	report.EstimatedFees = report.TotalVolume * (report.FeeRatePct / 100.0)

	if q.IncludeActualFees {
		c.reconcileActualFees(ctx, q, report)
	}

	logger.IncrementReportBuilt()
	log.WithFields(logger.Fields{
		"run_id":       report.RunID,
		"records":      len(raw),
		"orders":       report.OrderCount,
		"total_volume": report.TotalVolume,
		"fee_rate_pct": report.FeeRatePct,
	}).Info("volume report built")

	return report, nil
}

func (c *Calculator) originIncluded(rec models.RawRecord) bool {
	switch RecordOrigin(rec) {
	case OriginAPI:
		return true
	case OriginManual:
		return false
	default:
		return c.countUnknownOrigin
	}
}

// reconcileActualFees fetches the independently reported fee feed and sums
// it over the same window. Reconciliation is supplementary: a transport
// failure here leaves the volume figures intact and marks the block
// unavailable.
func (c *Calculator) reconcileActualFees(ctx context.Context, q Query, report *models.VolumeReport) {
	log := c.log.WithComponent("calculator")

	recs, err := c.source.FetchFeeHistory(ctx, c.feeHistoryLimit, q.Symbol)
	if err != nil {
		report.ActualFees = models.ActualFees{Status: models.FeeReconUnavailable}
		log.WithError(err).Warn("fee history unavailable; reconciliation skipped")
		return
	}
	logger.IncrementFeeRecords(len(recs))

	windowed := q.Since != nil || q.Until != nil
	actual := models.ActualFees{Status: models.FeeReconAvailable}

	for _, rec := range recs {
		v, _ := rec.Probe(FeeCreatedKeys...)
		created, parsed := ParseInstant(v)
		if windowed && !parsed {
			continue
		}
		if parsed {
			if q.Since != nil && created.Before(*q.Since) {
				continue
			}
			if q.Until != nil && created.After(*q.Until) {
				continue
			}
		}

		amt, ok := rec.ProbeFloat(FeeAmountKeys...)
		if !ok {
			continue
		}
		actual.Total += amt
		actual.RecordCount++
	}

	report.ActualFees = actual
}
