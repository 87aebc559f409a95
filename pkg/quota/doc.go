// Package quota enforces a coarse per-API-key request budget with token
// buckets: burst up to the per-minute capacity, continuous refill. Bucket
// state can be snapshotted to a small SQLite file so a restart does not
// reset a drained bucket.
package quota
