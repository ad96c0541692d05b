// Package queue hands "place the next call" work from webhook handlers to a
// background worker, so provider callbacks return without waiting on a new call.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	ConnectionSync   = "sync"
	ConnectionRedis  = "redis"
	ConnectionMemory = "memory"
)

var ErrClosed = errors.New("queue: closed")

// Job asks the worker to dial a lead that has already been claimed.
type Job struct {
	ID                string    `json:"id"`
	CampaignID        string    `json:"campaign_id"`
	LeadID            string    `json:"lead_id"`
	TriggeredByCallID string    `json:"triggered_by_call_id,omitempty"`
	EnqueuedAt        time.Time `json:"enqueued_at"`
	Attempt           int       `json:"attempt"`
}

// NewJob stamps a job with an id and enqueue time.
func NewJob(campaignID, leadID, triggeredBy string) Job {
	return Job{
		ID:                uuid.NewString(),
		CampaignID:        campaignID,
		LeadID:            leadID,
		TriggeredByCallID: triggeredBy,
		EnqueuedAt:        time.Now().UTC(),
	}
}

// Queue is a FIFO of jobs.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (Job, error)
}

// ResolveConnection picks the connection next-call jobs run on. A "sync"
// connection would place the next call inside the provider's webhook request,
// so it is redirected to the async connection.
func ResolveConnection(connection, async string) string {
	if connection == "" || connection == ConnectionSync {
		return async
	}
	return connection
}
