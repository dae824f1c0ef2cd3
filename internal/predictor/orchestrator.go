// Package predictor runs the end-to-end prediction pipeline for one image.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-crop-inspector/internal/catalog"
	"go-crop-inspector/internal/classifier"
	apperrors "go-crop-inspector/internal/errors"
	"go-crop-inspector/internal/imaging"
	"go-crop-inspector/internal/observer"
	"go-crop-inspector/pkg/models"
)

// UnknownDisease is reported whenever the pipeline could not classify.
const UnknownDisease = "Unknown"

var errNoClassifier = errors.New("no classifier configured")

// Orchestrator combines the normalizer, classifier and catalog.
type Orchestrator struct {
	classifier   classifier.Classifier
	catalog      *catalog.Catalog
	events       observer.Subject
	maxDimension int
}

// New creates an Orchestrator. events may be nil.
func New(c classifier.Classifier, cat *catalog.Catalog, events observer.Subject) *Orchestrator {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Orchestrator{classifier: c, catalog: cat, events: events}
}

// SetMaxDimension caps image and resize sizes for calls whose options leave
// MaxDimension unset.
func (o *Orchestrator) SetMaxDimension(n int) {
	o.maxDimension = n
}

// Catalog returns the recommendation catalog the orchestrator reads from.
func (o *Orchestrator) Catalog() *catalog.Catalog {
	return o.catalog
}

// Predict runs validate, normalize, classify and lookup. The returned error
// is always an *apperrors.AppError of type input, preprocess or inference.
func (o *Orchestrator) Predict(ctx context.Context, source string, in imaging.Input, opts imaging.Options) (models.PredictionResult, error) {
	start := time.Now()
	o.notify(ctx, observer.PredictionEvent{
		EventType: observer.PredictionStarted,
		Source:    source,
		Metadata:  map[string]interface{}{"input_kind": in.Kind().String()},
	})

	if in.Empty() {
		return models.PredictionResult{}, apperrors.NewInputError("No image data provided", nil)
	}

	if opts.MaxDimension <= 0 {
		opts.MaxDimension = o.maxDimension
	}
	payload, err := imaging.Normalize(in, opts)
	if err != nil {
		return models.PredictionResult{}, err
	}

	return o.classify(ctx, source, payload, start)
}

func (o *Orchestrator) classify(ctx context.Context, source string, payload []byte, start time.Time) (models.PredictionResult, error) {
	if o.classifier == nil {
		return models.PredictionResult{}, apperrors.NewInferenceError("Error during prediction", errNoClassifier)
	}
	cls, err := o.classifier.Classify(ctx, payload)
	if err != nil {
		if _, ok := apperrors.As(err); !ok {
			err = apperrors.NewInferenceError("Error during prediction", err)
		}
		return models.PredictionResult{}, err
	}

	result := models.PredictionResult{
		Disease:         cls.Label,
		Confidence:      cls.Confidence,
		Recommendations: o.catalog.Lookup(cls.Label),
	}
	o.notify(ctx, observer.PredictionEvent{
		EventType:      observer.PredictionCompleted,
		Source:         source,
		Disease:        result.Disease,
		Confidence:     result.Confidence,
		ProcessingTime: time.Since(start),
	})
	return result, nil
}

// PredictOne never fails: any pipeline error, panics included, is folded
// into a degraded result whose FailureKind names the failing stage.
func (o *Orchestrator) PredictOne(ctx context.Context, source string, in imaging.Input, opts imaging.Options) (result models.PredictionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = o.Degrade(ctx, source, Recovered(r))
		}
	}()

	result, err := o.Predict(ctx, source, in, opts)
	if err != nil {
		return o.Degrade(ctx, source, err)
	}
	return result
}

// Degrade builds the fallback result for err and records the event.
func (o *Orchestrator) Degrade(ctx context.Context, source string, err error) models.PredictionResult {
	result := Fallback(err)
	o.notify(ctx, observer.PredictionEvent{
		EventType:    observer.PredictionDegraded,
		Source:       source,
		ErrorKind:    result.FailureKind,
		ErrorMessage: result.Error,
	})
	return result
}

// Recovered converts a recovered panic value into an internal AppError.
func Recovered(r interface{}) error {
	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("%v", r)
	}
	return apperrors.NewInternalError("Unexpected error during prediction", cause)
}

// Fallback is the degraded result reported for err.
func Fallback(err error) models.PredictionResult {
	kind := string(apperrors.ErrorTypeInternal)
	reason := "Unexpected error"
	if err != nil {
		reason = err.Error()
	}
	if appErr, ok := apperrors.As(err); ok {
		kind = string(appErr.Type)
		reason = appErr.Reason()
	}
	return models.PredictionResult{
		Disease:         UnknownDisease,
		Confidence:      0,
		Recommendations: catalog.ProcessingFailure(),
		Error:           reason,
		FailureKind:     kind,
	}
}

func (o *Orchestrator) notify(ctx context.Context, event observer.PredictionEvent) {
	if o.events != nil {
		o.events.NotifyObservers(ctx, event)
	}
}
