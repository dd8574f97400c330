// Package extract turns posting text into structured job fields with a local model.
//
// The model's answer goes through an explicit fallback chain (strict JSON,
// repaired JSON, partial fields) and every step is logged as an Outcome.
// Extracted text is sent only to the configured local endpoint and never logged.
package extract

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/jobtrail/ai/provider"
	"github.com/teranos/jobtrail/am"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/logger"
)

// Extractor calls the model and validates its answer
type Extractor struct {
	gen               provider.TextGenerator
	maxInputChars     int
	maxDescription    int
	heuristicFallback bool
	logger            *zap.SugaredLogger
}

// New creates an Extractor around a text generator
func New(gen provider.TextGenerator, cfg am.ExtractConfig) *Extractor {
	if cfg.MaxInputChars <= 0 {
		cfg.MaxInputChars = 8000
	}
	if cfg.MaxDescriptionChars <= 0 {
		cfg.MaxDescriptionChars = 500
	}
	return &Extractor{
		gen:               gen,
		maxInputChars:     cfg.MaxInputChars,
		maxDescription:    cfg.MaxDescriptionChars,
		heuristicFallback: cfg.HeuristicFallback,
		logger:            logger.ComponentLogger("extract"),
	}
}

// Extract builds the prompt, calls the model once and parses its answer.
//
// Model failures wrap ErrModelUnavailable or ErrModelTimeout; an answer with
// no recoverable JSON wraps ErrExtractionParse. When heuristic fallback is
// enabled those three cases instead yield an OutcomeHeuristic result.
func (e *Extractor) Extract(ctx context.Context, text string) (*Result, error) {
	if len(text) == 0 {
		return nil, errors.NewValidationError("nothing to extract from")
	}

	start := time.Now()
	system, user := BuildPrompt(text, e.maxInputChars, e.maxDescription)
	model := e.gen.GetModelName()

	raw, err := e.gen.GenerateText(ctx, system, user)
	if err != nil {
		return e.fallback(ctx, text, model, start, err)
	}

	res, err := ParseResponse(raw, e.maxDescription)
	if err != nil {
		e.logger.Warnw("model response unparseable",
			logger.FieldModel, model,
			logger.FieldOutcome, OutcomeFailed,
			logger.FieldSize, len(raw))
		return e.fallback(ctx, text, model, start, err)
	}
	res.Model = model

	e.log(res, len(text), start)
	return res, nil
}

// fallback applies the heuristic extractor to model-side failures when enabled
func (e *Extractor) fallback(ctx context.Context, text, model string, start time.Time, cause error) (*Result, error) {
	modelFailure := errors.IsAny(cause, errors.ErrModelUnavailable, errors.ErrModelTimeout, errors.ErrExtractionParse)
	if !e.heuristicFallback || !modelFailure || ctx.Err() == context.Canceled {
		return nil, cause
	}

	e.logger.Infow("falling back to heuristic extraction",
		logger.FieldModel, model,
		logger.FieldErrorClass, errors.ClassOf(cause))

	res := Heuristic(text, e.maxDescription)
	res.Model = model
	e.log(res, len(text), start)
	return res, nil
}

func (e *Extractor) log(res *Result, textLen int, start time.Time) {
	missing := res.Missing()
	fields := []interface{}{
		logger.FieldModel, res.Model,
		logger.FieldOutcome, res.Outcome,
		logger.FieldTextLen, textLen,
		logger.FieldDurationMS, time.Since(start).Milliseconds(),
	}
	if len(missing) > 0 {
		fields = append(fields, logger.FieldMissing, missing)
	}
	e.logger.Infow("extraction complete", fields...)
}
