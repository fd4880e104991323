// Package loader mounts feature routes on the fiber app.
//
// A Feature reports whether it is enabled (snapshots need object storage,
// for instance) and registers its routes in Load. Disabled features are
// logged and skipped.
package loader
