// Package batch classifies many uploaded images concurrently.
package batch

import (
	"context"
	"os"
	"time"

	apperrors "go-crop-inspector/internal/errors"
	"go-crop-inspector/internal/imaging"
	"go-crop-inspector/internal/observer"
	"go-crop-inspector/internal/predictor"
	"go-crop-inspector/internal/spool"
	"go-crop-inspector/pkg/models"
	"go-crop-inspector/pkg/validation"
)

// DefaultWorkers is the per-call pool size.
const DefaultWorkers = 4

// Item is one uploaded file. Filename identifies it in the results.
type Item struct {
	Filename string
	Data     []byte
}

// Dispatcher fans a batch out over a worker pool created per call.
type Dispatcher struct {
	orchestrator *predictor.Orchestrator
	spool        *spool.Spool
	workers      int
	events       observer.Subject
}

// NewDispatcher creates a Dispatcher. events may be nil.
func NewDispatcher(o *predictor.Orchestrator, s *spool.Spool, workers int, events observer.Subject) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{orchestrator: o, spool: s, workers: workers, events: events}
}

type outcome struct {
	filename string
	result   models.BatchItemResult
}

// PredictMany classifies items and returns one entry per item in completion
// order. Per-item failures never abort the batch.
func (d *Dispatcher) PredictMany(ctx context.Context, items []Item) []models.BatchItemResult {
	start := time.Now()
	if len(items) == 0 {
		return []models.BatchItemResult{}
	}

	pool := NewWorkerPool(d.workers)
	pool.Start()
	defer pool.Close()

	outcomes := make(chan outcome, len(items))
	for _, item := range items {
		item := item
		pool.Submit(func() {
			defer func() {
				if r := recover(); r != nil {
					outcomes <- outcome{filename: item.Filename, result: d.fail(ctx, item.Filename, predictor.Recovered(r))}
				}
			}()
			outcomes <- outcome{filename: item.Filename, result: d.process(ctx, item)}
		})
	}
	pool.Wait()
	close(outcomes)

	results := make([]models.BatchItemResult, 0, len(items))
	failed, degraded := 0, 0
	for o := range outcomes {
		o.result.Filename = o.filename
		switch {
		case o.result.Error != "":
			failed++
		case o.result.Result != nil && o.result.Result.Degraded():
			degraded++
		}
		results = append(results, o.result)
	}

	d.notify(ctx, observer.PredictionEvent{
		EventType:      observer.BatchCompleted,
		ProcessingTime: time.Since(start),
		Metadata: map[string]interface{}{
			"items":          len(items),
			"failed_items":   failed,
			"degraded_items": degraded,
		},
	})
	return results
}

// process runs one item. Inference failures degrade to a fallback result;
// every other failure becomes the item's error.
func (d *Dispatcher) process(ctx context.Context, item Item) models.BatchItemResult {
	var result models.PredictionResult
	err := validation.ValidateUploadFilename(item.Filename)
	if err == nil {
		err = d.spool.With(item.Filename, item.Data, func(path string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return apperrors.NewInternalError("Failed to read uploaded file", err)
			}
			result, err = d.orchestrator.Predict(ctx, item.Filename, imaging.RawBytes(data), imaging.Options{})
			if apperrors.IsType(err, apperrors.ErrorTypeInference) {
				result = d.orchestrator.Degrade(ctx, item.Filename, err)
				return nil
			}
			return err
		})
	}

	if err != nil {
		return d.fail(ctx, item.Filename, err)
	}
	return models.BatchItemResult{Result: &result}
}

// fail records err as the item's error.
func (d *Dispatcher) fail(ctx context.Context, filename string, err error) models.BatchItemResult {
	reason := err.Error()
	if appErr, ok := apperrors.As(err); ok {
		reason = appErr.Reason()
	}
	d.notify(ctx, observer.PredictionEvent{
		EventType:    observer.BatchItemFailed,
		Source:       filename,
		ErrorMessage: reason,
	})
	return models.BatchItemResult{Error: reason}
}

func (d *Dispatcher) notify(ctx context.Context, event observer.PredictionEvent) {
	if d.events != nil {
		d.events.NotifyObservers(ctx, event)
	}
}
