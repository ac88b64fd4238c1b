package models

import "time"

// TrackedItem is one entry of the user's persisted tracked-queries list.
// The list itself is owned by the tracking collaborator; the catalog only
// references queries from it.
type TrackedItem struct {
	ID          string     `json:"id"`
	Query       string     `json:"query"`
	CreatedAt   time.Time  `json:"created_at"`
	LastUpdated *time.Time `json:"last_updated"`
}
