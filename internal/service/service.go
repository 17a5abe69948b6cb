// Package service orchestrates a variation request: it resolves the track, derives
// parameters from the prompt, merges client overrides and runs the effect chain.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/book-expert/logger"
	"github.com/book-expert/variation-service/internal/core"
	"github.com/book-expert/variation-service/internal/tracks"
	"github.com/book-expert/variation-service/internal/variation"
)

// StatusCompleted is reported for every variation that produced a final artifact.
const StatusCompleted = "completed"

// ErrInterpretation is returned when the prompt could not be turned into parameters.
var ErrInterpretation = errors.New("prompt interpretation failed")

// Service wires the track store, the prompt interpreter and the variation engine.
type Service struct {
	tracks      core.TrackStore
	interpreter core.PromptInterpreter
	engine      core.VariationEngine
	log         *logger.Logger
}

// New creates a new Service.
func New(
	trackStore core.TrackStore,
	interpreter core.PromptInterpreter,
	engine core.VariationEngine,
	log *logger.Logger,
) *Service {
	return &Service{
		tracks:      trackStore,
		interpreter: interpreter,
		engine:      engine,
		log:         log,
	}
}

// Parameters interprets req.Prompt and resolves the client overrides against it.
func (s *Service) Parameters(req core.VariationRequest) (core.ParameterSet, error) {
	interpreted, err := s.interpret(req.Prompt)
	if err != nil {
		return core.ParameterSet{}, err
	}

	return req.Apply(interpreted), nil
}

// CreateVariation renders a variation of trackID described by req.
func (s *Service) CreateVariation(
	ctx context.Context,
	trackID string,
	req core.VariationRequest,
) (*core.VariationResult, error) {
	inputPath, err := s.tracks.Path(trackID)
	if err != nil {
		s.log.Warn("Variation rejected for track '%s': %v", trackID, err)

		return nil, err
	}

	params, err := s.Parameters(req)
	if err != nil {
		s.log.Error("Failed to interpret prompt for track '%s': %v", trackID, err)

		return nil, err
	}

	s.log.Info("Creating variation for track '%s' with params %+v", trackID, params)

	outputPath, err := s.engine.ApplyChain(ctx, inputPath, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create variation for track '%s': %w", trackID, err)
	}

	result := &core.VariationResult{
		TrackID:     trackID,
		VariationID: variation.VariationID(outputPath),
		Params:      params,
		OutputPath:  outputPath,
		Status:      StatusCompleted,
	}

	s.log.Info("Variation '%s' created for track '%s'", result.VariationID, trackID)

	return result, nil
}

func (s *Service) interpret(prompt string) (params core.ParameterSet, err error) {
	defer func() {
		recovered := recover()
		if recovered != nil {
			err = fmt.Errorf("%w: %v", ErrInterpretation, recovered)
		}
	}()

	return s.interpreter.Interpret(prompt), nil
}

// StatusCode maps an error returned by the service onto an HTTP status code.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, tracks.ErrTrackNotFound),
		errors.Is(err, tracks.ErrInvalidTrackID),
		errors.Is(err, core.ErrInputMissing):
		return http.StatusNotFound
	case errors.Is(err, ErrInterpretation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
