// Package jobs implements the job-dispatch layer (C6): translating an
// HTTP action into a queued unit of work and guaranteeing a worker
// eventually wakes up to process it. Grounded on the teacher's
// internal/jobs.Store dual-driver shape, retargeted from a persisted
// job-history store onto a transient, at-least-once delivery queue per
// spec.md §4.6.
package jobs

import (
	"context"
	"time"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Delivery wraps a dequeued Job together with the handle needed to
// acknowledge or release it. The SQS binding's handle is the message's
// receipt handle; the local binding's is a synthetic envelope ID.
type Delivery struct {
	Job     models.Job
	Handle  string
	Receipt int // delivery attempt count, for visibility into redeliveries
}

// Dispatcher is the C6 contract: reliable at-least-once delivery of a
// token telling some worker to advance chatId. Two bindings satisfy it
// — SQSDispatcher for production, LocalDispatcher for single-process /
// CLI use — and the worker (C7) is written against this interface only,
// never against either concrete type.
type Dispatcher interface {
	// Enqueue publishes a job. It must not block on anything but the
	// underlying transport; failures are the caller's to retry or
	// surface, since enqueue happens inline in an HTTP handler's request
	// path per spec.md §4.8.
	Enqueue(ctx context.Context, job models.Job) error

	// Receive blocks for the next available job. SQSDispatcher returns
	// (nil, nil) when its long poll ends with nothing available, so
	// callers loop rather than treat it as an error; LocalDispatcher
	// keeps polling until a job arrives or ctx is done, and then returns
	// ctx.Err().
	Receive(ctx context.Context) (*Delivery, error)

	// Ack permanently removes a delivered job from the queue once the
	// worker has finished processing it (success or a terminal error).
	Ack(ctx context.Context, d *Delivery) error

	// Nack releases a delivery back to the queue immediately rather than
	// waiting out the visibility timeout, for a worker that decides very
	// early it cannot process a job (e.g. chat already gone).
	Nack(ctx context.Context, d *Delivery) error

	// Close releases any held resources (connections, file handles).
	Close() error
}

// DefaultVisibilityTimeout is the default per-chat effective lock duration:
// long enough to cover a single agent-loop invocation's worst-case wall
// time (a full max_iterations run against a slow provider), per
// spec.md §4.6's "visibility timeout ≥ max expected single-invocation
// wall time".
const DefaultVisibilityTimeout = 2 * time.Minute
