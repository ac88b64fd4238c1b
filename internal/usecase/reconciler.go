package usecase

import (
	"context"
	"fmt"

	"PriceHunter/internal/domain/models"
	drepo "PriceHunter/internal/domain/repository"
	"PriceHunter/pkg/logger"
	"PriceHunter/pkg/util"
)

// Reconciler bridges the persisted tracked-queries feed to the session
// manager: every feed emission is compared against the catalog, and a
// session is started once for each tracked query that has no group yet.
type Reconciler struct {
	tracking drepo.TrackingStore
	catalog  *Catalog
	sessions *SessionManager
	logger   *logger.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(tracking drepo.TrackingStore, catalog *Catalog, sessions *SessionManager, lgr *logger.Logger) *Reconciler {
	return &Reconciler{tracking: tracking, catalog: catalog, sessions: sessions, logger: lgr}
}

// Run consumes feed emissions until ctx is cancelled or the feed closes.
func (r *Reconciler) Run(ctx context.Context) error {
	feed, err := r.tracking.Watch(ctx)
	if err != nil {
		return fmt.Errorf("tracking watch: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case items, ok := <-feed:
			if !ok {
				return nil
			}
			r.reconcile(ctx, items)
		}
	}
}

// reconcile starts a session for every tracked query missing from the
// catalog, at most once per query per emission. Tracked queries are
// normalized before comparison so cosmetic differences in the stored form
// cannot under-trigger a resume.
func (r *Reconciler) reconcile(ctx context.Context, items []models.TrackedItem) {
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		query := util.NormalizeQuery(item.Query)
		if query == "" {
			continue
		}
		if _, dup := seen[query]; dup {
			continue
		}
		seen[query] = struct{}{}

		if r.catalog.HasGroup(query) {
			continue
		}
		r.logger.Info("auto-loading tracked query", logger.String("query", query))
		if _, err := r.sessions.StartSession(ctx, query, false); err != nil {
			r.logger.Warn("tracked query session start failed",
				logger.String("query", query), logger.Error(err))
		}
	}
}
