// Package objectstore backs the relay's canonical store with NATS JetStream
// ObjectStore buckets. The relay uses two buckets: one it reads artifacts
// from and one it writes result records to. Both go through the same Store
// type; only the bucket name differs.
package objectstore
