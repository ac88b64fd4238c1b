package models

// SearchRequest starts a scrape session for a new or existing group.
type SearchRequest struct {
	Query        string `json:"query" validate:"required,min=3"`
	ForceRefresh bool   `json:"force_refresh"`
	Track        bool   `json:"track"`
}

// OptionsRequest fetches comparison options from the snapshot store.
type OptionsRequest struct {
	Query string `query:"query" validate:"required"`
	Store string `query:"store"`
	Limit int    `query:"limit" default:"10" validate:"gte=1,lte=50"`
}

// TrackRequest persists a query on the user's tracked list.
type TrackRequest struct {
	Query string `json:"query" validate:"required,min=3"`
}
