package logger

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	orderPages    int64
	orderRecords  int64
	feeRecords    int64
	reportsBuilt  int64
	archiveWrites int64
	archiveBytes  int64
	errorsFetch   int64
	errorsArchive int64
	warnsFetch    int64
	warnsArchive  int64
)

func recordWarn(component string) {
	if strings.Contains(component, "archiver") {
		atomic.AddInt64(&warnsArchive, 1)
	} else if strings.Contains(component, "reader") || strings.Contains(component, "client") {
		atomic.AddInt64(&warnsFetch, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "archiver") {
		atomic.AddInt64(&errorsArchive, 1)
	} else if strings.Contains(component, "reader") || strings.Contains(component, "client") {
		atomic.AddInt64(&errorsFetch, 1)
	}
}

// IncrementOrderPage records one fetched order-history page holding n raw
// records.
func IncrementOrderPage(n int) {
	atomic.AddInt64(&orderPages, 1)
	atomic.AddInt64(&orderRecords, int64(n))
}

// IncrementFeeRecords records n fetched fee-history records.
func IncrementFeeRecords(n int) {
	atomic.AddInt64(&feeRecords, int64(n))
}

// IncrementReportBuilt records one completed volume report.
func IncrementReportBuilt() {
	atomic.AddInt64(&reportsBuilt, 1)
}

// IncrementArchiveWrite records one archived pull of the given size.
func IncrementArchiveWrite(size int64) {
	atomic.AddInt64(&archiveWrites, 1)
	atomic.AddInt64(&archiveBytes, size)
}

// StartReport begins periodic logging of system and pull statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"order_pages":    atomic.LoadInt64(&orderPages),
		"order_records":  atomic.LoadInt64(&orderRecords),
		"fee_records":    atomic.LoadInt64(&feeRecords),
		"reports_built":  atomic.LoadInt64(&reportsBuilt),
		"archive_writes": atomic.LoadInt64(&archiveWrites),
		"archive_bytes":  atomic.LoadInt64(&archiveBytes),
		"errors_fetch":   atomic.LoadInt64(&errorsFetch),
		"errors_archive": atomic.LoadInt64(&errorsArchive),
		"warns_fetch":    atomic.LoadInt64(&warnsFetch),
		"warns_archive":  atomic.LoadInt64(&warnsArchive),
		"goroutines":     runtime.NumGoroutine(),
		"cpu_percent":    cpuPct,
		"memory_mb":      int64(memStats.Used) / 1024 / 1024,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("Feeflow-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("Feeflow-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		{MetricName: aws.String("Feeflow-OrderPages"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&orderPages)))},
		{MetricName: aws.String("Feeflow-OrderRecords"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&orderRecords)))},
		{MetricName: aws.String("Feeflow-FeeRecords"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&feeRecords)))},
		{MetricName: aws.String("Feeflow-ReportsBuilt"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&reportsBuilt)))},
		{MetricName: aws.String("Feeflow-ArchiveWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&archiveWrites)))},
		{MetricName: aws.String("Feeflow-ArchiveBytes"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(atomic.LoadInt64(&archiveBytes)))},
		{MetricName: aws.String("Feeflow-ErrorsFetch"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsFetch)))},
		{MetricName: aws.String("Feeflow-ErrorsArchive"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsArchive)))},
	}

	publishMetrics(ctx, data)
}
