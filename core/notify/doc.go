// Package notify carries change events from the cache store to the readers of
// paging buckets.
//
// The Broker is an in-process fan-out: the store publishes one Event per touched
// bucket after a commit, and the mediator publishes an Event whenever a bucket's
// load state changes. Subscribers are keyed by account and bucket. An Event with an
// empty Bucket reaches every subscriber of the account, and an Event with an empty
// Account reaches every subscriber; the store uses the latter when shared users or
// references changed.
//
// Delivery is coalescing. Each subscription holds at most one pending event and a
// publish never blocks, so slow readers simply observe the latest snapshot when
// they next read.
//
// # Redis bridge
//
// When several processes share one database, RedisBridge relays events through a
// Redis pub/sub channel so that a commit in one process wakes readers in all of
// them. Events carry the originating broker id so a process ignores its own echoes.
//
//	broker := notify.NewBroker(log)
//	bridge := notify.NewRedisBridge(redis.NewClient(&redis.Options{Addr: addr}), cfg.Channel, broker, log)
//	if err := bridge.Start(ctx); err != nil { ... }
package notify
