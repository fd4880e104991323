// Package logger builds the zap logger shared by every component.
//
// WithRayID tags a log line with the request id stored by the rayid
// middleware. ForBucket tags it with the account and bucket of a timeline
// load, so one bucket's fetches, merges and mapping warnings can be grepped
// together.
//
// Settings come from LOG_LEVEL (debug, info, warn, error), LOG_FORMAT
// (json or console) and LOG_OUTPUT (stderr, stdout or a file path).
//
//	log, _ := logger.New(&cfg.Log)
//	logger.ForBucket(log, account.String(), model.BucketHome).Warn("skipped item", zap.Error(err))
package logger
