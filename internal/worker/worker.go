// Package worker provides a NATS worker that renders variations on request.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/variation-service/internal/core"
	"github.com/book-expert/variation-service/internal/fsutil"
	"github.com/book-expert/variation-service/internal/service"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const (
	handleMessageTimeout = 10 * time.Minute
	artifactExtension    = ".wav"
)

// VariationCreator is the part of the service the worker needs.
type VariationCreator interface {
	CreateVariation(ctx context.Context, trackID string, req core.VariationRequest) (*core.VariationResult, error)
}

// NatsWorker listens for variation requests on a NATS subject and replies with the result.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	creator        VariationCreator
	store          core.ObjectStore
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. store may be nil, in which case
// final artifacts are only reported by path.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	creator VariationCreator,
	store core.ObjectStore,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		creator:        creator,
		store:          store,
		log:            log,
	}
}

// Run starts the worker and blocks until ctx is done.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	w.log.Info("Listening for variation requests on '%s'", w.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse variation request: %v", err)
		w.reply(msg, &VariationCreatedEvent{
			Header:     newReplyHeader(events.EventHeader{}),
			Status:     StatusFailed,
			Error:      err.Error(),
			StatusCode: http.StatusBadRequest,
		})

		return
	}

	w.reply(msg, w.processVariation(ctx, event))
}

// processVariation renders the requested variation and, when a store is configured,
// publishes the final artifact. A published artifact lives only in the store; the local
// copy is removed whether or not the upload succeeded.
func (w *NatsWorker) processVariation(ctx context.Context, event *VariationRequestedEvent) *VariationCreatedEvent {
	reply := &VariationCreatedEvent{
		Header:  newReplyHeader(event.Header),
		TrackID: event.TrackID,
		Status:  StatusFailed,
	}

	result, err := w.creator.CreateVariation(ctx, event.TrackID, event.Request)
	if err != nil {
		w.log.Error("Variation for workflow %s failed: %v", event.Header.WorkflowID, err)
		reply.Error = err.Error()
		reply.StatusCode = service.StatusCode(err)

		return reply
	}

	reply.VariationID = result.VariationID
	reply.Params = result.Params
	reply.OutputPath = result.OutputPath

	if w.store != nil {
		artifactKey, uploadErr := w.publishArtifact(ctx, result)
		w.discard(result.OutputPath)

		reply.OutputPath = ""

		if uploadErr != nil {
			w.log.Error("Failed to publish variation %s: %v", result.VariationID, uploadErr)
			reply.Error = uploadErr.Error()
			reply.StatusCode = http.StatusInternalServerError

			return reply
		}

		reply.ArtifactKey = artifactKey
	}

	reply.Status = StatusCompleted
	reply.StatusCode = http.StatusOK

	return reply
}

func (w *NatsWorker) publishArtifact(ctx context.Context, result *core.VariationResult) (string, error) {
	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		return "", fmt.Errorf("failed to read final artifact '%s': %w", result.OutputPath, err)
	}

	artifactKey := result.VariationID + artifactExtension

	err = w.store.Upload(ctx, artifactKey, data)
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact for key '%s': %w", artifactKey, err)
	}

	w.log.Info("Published variation '%s' (%s).", artifactKey, fsutil.FormatFileSize(int64(len(data))))

	return artifactKey, nil
}

// discard removes a local artifact. Failures are logged, never returned.
func (w *NatsWorker) discard(path string) {
	removeErr := os.Remove(path)
	if removeErr != nil && !errors.Is(removeErr, fs.ErrNotExist) {
		w.log.Warn("Failed to remove local artifact '%s': %v", path, removeErr)
	}
}

func (w *NatsWorker) reply(msg *nats.Msg, replyEvent *VariationCreatedEvent) {
	if msg.Reply == "" {
		w.log.Warn("Variation request for track '%s' has no reply subject", replyEvent.TrackID)

		return
	}

	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		w.log.Error("Failed to marshal reply event: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v", replyEvent.Header.WorkflowID, err)
	}
}

func parseEvent(msg *nats.Msg) (*VariationRequestedEvent, error) {
	var event VariationRequestedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}

// newReplyHeader keeps the workflow identity of the request under a fresh event id.
func newReplyHeader(request events.EventHeader) events.EventHeader {
	return events.EventHeader{
		Timestamp:  time.Now(),
		WorkflowID: request.WorkflowID,
		EventID:    uuid.NewString(),
		UserID:     request.UserID,
		TenantID:   request.TenantID,
	}
}
