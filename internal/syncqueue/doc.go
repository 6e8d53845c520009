// Package syncqueue owns pending mutations from enqueue through delivery
// or permanent failure.
//
// Operations are persisted in the offline-queue store at enqueue time and
// removed only on delivered success; exhausted operations stay retained
// with a failed flag. Delivery is at-least-once: the server deduplicates
// retried deliveries by the X-Idempotency-Key header carrying the
// operation id.
//
// # Ordering
//
// Within one ProcessQueue pass operations go out in FIFO enqueue order.
// Across passes, and for operations rescheduled by solo-retry timers, no
// global order holds: an operation in backoff can be delivered after one
// enqueued later. This weak ordering is an accepted trade of simplicity
// over strictly ordered delivery.
package syncqueue
