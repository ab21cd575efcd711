package writer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	parquetwriter "github.com/xitongsys/parquet-go/writer"

	appconfig "feeflow/config"
	"feeflow/logger"
	"feeflow/models"
	"feeflow/processor"
)

// ArchiveRow is one raw order flattened for the parquet audit trail.
type ArchiveRow struct {
	RunID          string  `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol         string  `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Status         string  `parquet:"name=status, type=BYTE_ARRAY, convertedtype=UTF8"`
	Source         string  `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt      int64   `parquet:"name=created_at, type=INT64"` // unix ms, 0 when unparseable
	FilledQuantity float64 `parquet:"name=filled_quantity, type=DOUBLE"`
	Price          float64 `parquet:"name=price, type=DOUBLE"`
	Notional       float64 `parquet:"name=notional, type=DOUBLE"`
}

// Archiver writes each raw order-history pull to a snappy-compressed
// parquet file and optionally uploads it to S3. Archiving is an audit
// trail, never part of the report; callers treat every failure here as
// non-fatal.
type Archiver struct {
	cfg      *appconfig.Config
	s3Client *s3.Client
	log      *logger.Log
}

// NewArchiver creates an Archiver. The S3 client is only configured when
// storage.s3 is enabled; static credentials from the config win over the
// default AWS chain.
func NewArchiver(cfg *appconfig.Config) (*Archiver, error) {
	a := &Archiver{cfg: cfg, log: logger.GetLogger()}

	if cfg.Storage.S3.Enabled {
		loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Storage.S3.Region)}
		if cfg.Storage.S3.AccessKeyID != "" && cfg.Storage.S3.SecretAccessKey != "" {
			loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(
					cfg.Storage.S3.AccessKeyID,
					cfg.Storage.S3.SecretAccessKey,
					"",
				),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		a.s3Client = s3.NewFromConfig(awsCfg)
	}

	return a, nil
}

// ArchivePull writes records as one parquet file named by pull time and run
// ID and returns the local file path.
func (a *Archiver) ArchivePull(ctx context.Context, runID string, records []models.RawRecord) (string, error) {
	dir := a.cfg.Archive.Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	stamp := time.Now().In(processor.ReferenceZone).Format("2006-01-02T15-04-05")
	name := fmt.Sprintf("orders_%s_%s.parquet", stamp, shortID(runID))
	path := filepath.Join(dir, name)

	if err := a.writeParquet(path, runID, records); err != nil {
		return "", err
	}

	if info, err := os.Stat(path); err == nil {
		logger.IncrementArchiveWrite(info.Size())
	}

	if a.s3Client != nil {
		if err := a.upload(ctx, path, name); err != nil {
			return path, fmt.Errorf("upload archive: %w", err)
		}
	}

	a.log.WithComponent("archiver").WithFields(logger.Fields{
		"path":    path,
		"records": len(records),
	}).Info("raw pull archived")

	return path, nil
}

func (a *Archiver) writeParquet(path, runID string, records []models.RawRecord) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}

	pw, err := parquetwriter.NewParquetWriter(fw, new(ArchiveRow), 1)
	if err != nil {
		fw.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, rec := range records {
		if err := pw.Write(flattenRecord(runID, rec)); err != nil {
			_ = pw.WriteStop()
			fw.Close()
			return fmt.Errorf("write archive row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalize archive file: %w", err)
	}
	return fw.Close()
}

func flattenRecord(runID string, rec models.RawRecord) *ArchiveRow {
	row := &ArchiveRow{RunID: runID, Symbol: processor.RecordSymbol(rec)}
	row.Status, _ = rec.ProbeString("status")
	row.Source, _ = rec.ProbeString(processor.SourceKeys...)
	if created, ok := processor.ParseInstant(rec["created_at"]); ok {
		row.CreatedAt = created.UnixMilli()
	}
	row.FilledQuantity, _ = rec.ProbeFloat(processor.QuantityKeys...)
	row.Price, _ = rec.ProbeFloat(processor.PriceKeys...)
	row.Notional = processor.NotionalValue(rec)
	return row
}

func (a *Archiver) upload(ctx context.Context, path, name string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	key := name
	if prefix := strings.Trim(a.cfg.Storage.S3.Prefix, "/"); prefix != "" {
		key = prefix + "/" + name
	}

	if _, err := a.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.cfg.Storage.S3.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}); err != nil {
		return err
	}

	a.log.WithComponent("archiver").WithFields(logger.Fields{
		"bucket": a.cfg.Storage.S3.Bucket,
		"key":    key,
		"bytes":  len(data),
	}).Debug("archive uploaded")

	return nil
}

func shortID(runID string) string {
	if len(runID) > 8 {
		return runID[:8]
	}
	return runID
}
