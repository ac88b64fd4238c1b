package scrapestream

import (
	"encoding/json"
	"fmt"

	"PriceHunter/internal/domain/models"
)

// frame is the wire shape of one scrape-stream frame body.
type frame struct {
	Type    string              `json:"type"`
	Message string              `json:"message,omitempty"`
	Data    *models.StoreResult `json:"data,omitempty"`
}

// DecodeFrame parses a raw frame body into a typed event. Unknown or
// unparsable frames decode to EventMalformed with a diagnostic; consumers
// drop them and keep reading, they never abort the session.
func DecodeFrame(raw []byte) models.Event {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return models.Event{Kind: models.EventMalformed, Message: fmt.Sprintf("unparsable frame: %v", err)}
	}

	switch f.Type {
	case "log":
		return models.Event{Kind: models.EventLog, Message: f.Message}
	case "result":
		if f.Data == nil {
			return models.Event{Kind: models.EventMalformed, Message: "result frame without data"}
		}
		res := *f.Data
		// query_term is the sole deduplication key downstream, so the
		// defaulting has to happen here, before anyone sees the result.
		if res.QueryTerm == "" {
			res.QueryTerm = res.Name
		}
		return models.Event{Kind: models.EventResult, Result: &res}
	case "done":
		return models.Event{Kind: models.EventDone}
	default:
		return models.Event{Kind: models.EventMalformed, Message: fmt.Sprintf("unknown frame type %q", f.Type)}
	}
}
