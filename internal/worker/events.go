package worker

import (
	"github.com/book-expert/events"
	"github.com/book-expert/variation-service/internal/core"
)

// Reply statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// VariationRequestedEvent asks the service to render a variation of a stored track.
type VariationRequestedEvent struct {
	Header  events.EventHeader    `json:"header"`
	TrackID string                `json:"track_id"`
	Request core.VariationRequest `json:"request"`
}

// VariationCreatedEvent is the reply to a VariationRequestedEvent. Failed requests carry
// Status "failed", the error text and the status code the HTTP transport would use.
type VariationCreatedEvent struct {
	Header      events.EventHeader `json:"header"`
	TrackID     string             `json:"track_id"`
	VariationID string             `json:"variation_id,omitempty"`
	Params      core.ParameterSet  `json:"params"`
	OutputPath  string             `json:"output_path,omitempty"`
	ArtifactKey string             `json:"artifact_key,omitempty"`
	Status      string             `json:"status"`
	Error       string             `json:"error,omitempty"`
	StatusCode  int                `json:"status_code"`
}
