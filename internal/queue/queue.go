// Package queue is the durable FIFO job queue backed by a Redis list.
// Producers LPUSH, consumers BRPOP. Retries wait in a sorted set scored by
// the time they become due and are moved back onto the list by PromoteDue.
package queue

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/models"
)

// Queue is what the worker pool needs from the broker.
type Queue interface {
	// Pop blocks up to the configured timeout. It returns nil, nil when no
	// job arrived in time.
	Pop(ctx context.Context) ([]byte, error)
	Enqueue(ctx context.Context, j *models.Job) error
	EnqueueAt(ctx context.Context, j *models.Job, readyAt time.Time) error
	PromoteDue(ctx context.Context, now time.Time) (int, error)
	EnsureConnection(ctx context.Context) error
	Len(ctx context.Context) (int64, error)
}
