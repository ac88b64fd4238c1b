package usecase

import (
	"context"
	"fmt"

	"PriceHunter/pkg/logger"
	"PriceHunter/pkg/queue"
)

// RefreshJobType is the queue message type for catalog refreshes.
const RefreshJobType = "catalog.refresh"

// RefreshPayload is the queue payload for a single group refresh.
type RefreshPayload struct {
	Query string `json:"query"`
}

// RefreshJob re-scrapes one product group when its message is consumed.
// Refresh jobs bypass the catalog cap because they only touch groups that
// already exist.
type RefreshJob struct {
	sessions *SessionManager
	logger   *logger.Logger
}

// NewRefreshJob creates a refresh job handler.
func NewRefreshJob(sessions *SessionManager, lgr *logger.Logger) *RefreshJob {
	return &RefreshJob{sessions: sessions, logger: lgr}
}

func (j *RefreshJob) Name() string { return "catalog refresh" }

func (j *RefreshJob) Type() string { return RefreshJobType }

func (j *RefreshJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[RefreshPayload](payload)
	if err != nil {
		return fmt.Errorf("refresh payload: %w", err)
	}
	if p.Query == "" {
		return fmt.Errorf("refresh payload: empty query")
	}

	j.logger.Info("refresh job consumed", logger.String("query", p.Query))
	if _, err := j.sessions.StartSession(ctx, p.Query, true); err != nil {
		return fmt.Errorf("refresh %q: %w", p.Query, err)
	}
	return nil
}
