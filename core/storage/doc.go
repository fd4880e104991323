// Package storage holds the object storage client used for cache snapshots.
//
// Client is the part of the MinIO API the snapshot and integrity features call;
// tests substitute the testify mock in core/storage/mocks. An endpoint may carry
// an http:// or https:// scheme, the latter forcing TLS.
//
//	client, err := storage.NewClient(cfg.Storage)
//	err = storage.EnsureBucket(ctx, client, cfg.Storage.Bucket, cfg.Storage.Region)
package storage
