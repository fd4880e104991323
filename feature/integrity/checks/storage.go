package checks

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"timeline-cache/core/storage"
	"timeline-cache/feature/snapshot"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// StorageReport describes the snapshot bucket.
type StorageReport struct {
	Bucket       string         `json:"bucket"`
	BucketExists bool           `json:"bucket_exists"`
	Snapshots    map[string]int `json:"snapshots"`
	// Stray lists objects under the prefix that Export did not name, such as
	// folder markers or partial uploads.
	Stray []string `json:"stray"`
	// Empty lists zero-byte snapshots.
	Empty []string `json:"empty"`
}

// Healthy reports whether nothing needs fixing.
func (r *StorageReport) Healthy() bool {
	return r.BucketExists && len(r.Stray) == 0 && len(r.Empty) == 0
}

// CheckStorage lists the snapshot prefix and classifies every object.
func CheckStorage(ctx context.Context, client storage.Client, cfg storage.Config) (*StorageReport, error) {
	report := &StorageReport{
		Bucket:    cfg.Bucket,
		Snapshots: make(map[string]int),
		Stray:     []string{},
		Empty:     []string{},
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	report.BucketExists = exists
	if !exists {
		return report, nil
	}

	opts := minio.ListObjectsOptions{Prefix: cfg.Prefix, Recursive: true}
	for obj := range client.ListObjects(ctx, cfg.Bucket, opts) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", cfg.Bucket, obj.Err)
		}
		account, _, err := snapshot.ParseObjectKey(cfg.Prefix, obj.Key)
		switch {
		case err != nil:
			report.Stray = append(report.Stray, obj.Key)
		case obj.Size == 0:
			report.Empty = append(report.Empty, obj.Key)
		default:
			report.Snapshots[account.String()]++
		}
	}
	sort.Strings(report.Stray)
	sort.Strings(report.Empty)
	return report, nil
}

// FixStorage creates a missing bucket and removes stray and empty objects.
func FixStorage(ctx context.Context, client storage.Client, cfg storage.Config, logger *zap.Logger, report *StorageReport) error {
	if !report.BucketExists {
		if err := storage.EnsureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
			return err
		}
		logger.Info("Created snapshot bucket", zap.String("bucket", cfg.Bucket))
		return nil
	}

	victims := append(append([]string{}, report.Stray...), report.Empty...)
	if len(victims) == 0 {
		return nil
	}

	objectsCh := make(chan minio.ObjectInfo)
	go func() {
		defer close(objectsCh)
		for _, key := range victims {
			select {
			case objectsCh <- minio.ObjectInfo{Key: key}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var errs []error
	for rErr := range client.RemoveObjects(ctx, cfg.Bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		logger.Error("Failed to remove object", zap.String("key", rErr.ObjectName), zap.Error(rErr.Err))
		errs = append(errs, rErr.Err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Info("Removed stray snapshot objects", zap.Int("count", len(victims)))
	return nil
}
