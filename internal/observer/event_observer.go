package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PredictionEvent represents a prediction pipeline event
type PredictionEvent struct {
	EventType      EventType              `json:"event_type"`
	Timestamp      time.Time              `json:"timestamp"`
	Source         string                 `json:"source"`
	Disease        string                 `json:"disease,omitempty"`
	Confidence     float64                `json:"confidence,omitempty"`
	ProcessingTime time.Duration          `json:"processing_time"`
	ErrorKind      string                 `json:"error_kind,omitempty"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// EventType represents the type of prediction event
type EventType string

const (
	PredictionStarted   EventType = "prediction_started"
	PredictionCompleted EventType = "prediction_completed"
	// PredictionDegraded is emitted when a fallback result was returned.
	PredictionDegraded EventType = "prediction_degraded"
	BatchCompleted     EventType = "batch_completed"
	BatchItemFailed    EventType = "batch_item_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event PredictionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event PredictionEvent)
}

// LoggingObserver logs prediction events
type LoggingObserver struct {
	logger *logrus.Logger
}

func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{logger: logger}
}

func (o *LoggingObserver) OnEvent(ctx context.Context, event PredictionEvent) {
	fields := logrus.Fields{
		"event_type":         event.EventType,
		"source":             event.Source,
		"processing_time_ms": event.ProcessingTime.Milliseconds(),
	}
	if event.Disease != "" {
		fields["disease"] = event.Disease
		fields["confidence"] = event.Confidence
	}
	if event.ErrorMessage != "" {
		fields["error_kind"] = event.ErrorKind
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case PredictionStarted:
		entry.Debug("Prediction started")
	case PredictionCompleted:
		entry.Info("Prediction completed")
	case PredictionDegraded:
		entry.Warn("Prediction degraded to fallback result")
	case BatchItemFailed:
		entry.Warn("Batch item failed")
	case BatchCompleted:
		entry.Info("Batch prediction completed")
	default:
		entry.Info("Prediction event occurred")
	}
}

func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// MetricsObserver collects counters from prediction events
type MetricsObserver struct {
	mu                  sync.RWMutex
	totalPredictions    int64
	successful          int64
	degraded            int64
	batches             int64
	failedBatchItems    int64
	totalProcessingTime time.Duration
	byDisease           map[string]int64
}

func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{byDisease: make(map[string]int64)}
}

func (o *MetricsObserver) OnEvent(ctx context.Context, event PredictionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case PredictionStarted:
		o.totalPredictions++
	case PredictionCompleted:
		o.successful++
		o.totalProcessingTime += event.ProcessingTime
		o.byDisease[event.Disease]++
	case PredictionDegraded:
		o.degraded++
	case BatchCompleted:
		o.batches++
	case BatchItemFailed:
		o.failedBatchItems++
	}
}

func (o *MetricsObserver) GetObserverName() string {
	return "metrics_observer"
}

// Metrics is a point-in-time copy of the counters.
type Metrics struct {
	TotalPredictions      int64            `json:"total_predictions"`
	SuccessfulPredictions int64            `json:"successful_predictions"`
	DegradedPredictions   int64            `json:"degraded_predictions"`
	Batches               int64            `json:"batches"`
	FailedBatchItems      int64            `json:"failed_batch_items"`
	AvgProcessingTimeMs   float64          `json:"avg_processing_time_ms"`
	Diseases              map[string]int64 `json:"diseases"`
}

func (o *MetricsObserver) GetMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var avg float64
	if o.successful > 0 {
		avg = float64(o.totalProcessingTime.Microseconds()) / float64(o.successful) / 1000.0
	}
	diseases := make(map[string]int64, len(o.byDisease))
	for k, v := range o.byDisease {
		diseases[k] = v
	}

	return Metrics{
		TotalPredictions:      o.totalPredictions,
		SuccessfulPredictions: o.successful,
		DegradedPredictions:   o.degraded,
		Batches:               o.batches,
		FailedBatchItems:      o.failedBatchItems,
		AvgProcessingTimeMs:   avg,
		Diseases:              diseases,
	}
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	wg        sync.WaitGroup
}

func NewEventPublisher() *EventPublisher {
	return &EventPublisher{observers: make([]Observer, 0)}
}

func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers fans the event out to every observer on its own goroutine.
// A panicking observer is logged and does not affect the others.
func (p *EventPublisher) NotifyObservers(ctx context.Context, event PredictionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		p.wg.Add(1)
		go func(obs Observer) {
			defer p.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logrus.WithField("observer", obs.GetObserverName()).
						WithField("panic", r).
						Error("Observer panicked while handling event")
				}
			}()
			obs.OnEvent(ctx, event)
		}(observer)
	}
}

// Flush blocks until every notification dispatched so far has been handled.
func (p *EventPublisher) Flush() {
	p.wg.Wait()
}
