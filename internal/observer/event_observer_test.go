package observer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type panickyObserver struct{}

func (panickyObserver) OnEvent(context.Context, PredictionEvent) { panic("boom") }
func (panickyObserver) GetObserverName() string                  { return "panicky" }

func TestEventPublisher_DeliversToAllObservers(t *testing.T) {
	pub := NewEventPublisher()
	first := NewMetricsObserver()
	pub.Subscribe(first)
	pub.Subscribe(panickyObserver{})

	ctx := context.Background()
	pub.NotifyObservers(ctx, PredictionEvent{EventType: PredictionStarted})
	pub.NotifyObservers(ctx, PredictionEvent{EventType: PredictionCompleted, Disease: "late_blight", ProcessingTime: 10 * time.Millisecond})
	pub.NotifyObservers(ctx, PredictionEvent{EventType: PredictionDegraded})
	pub.Flush()

	m := first.GetMetrics()
	if m.TotalPredictions != 1 || m.SuccessfulPredictions != 1 || m.DegradedPredictions != 1 {
		t.Errorf("Unexpected counters: %+v", m)
	}
	if m.Diseases["late_blight"] != 1 {
		t.Errorf("Expected one late_blight prediction, got %d", m.Diseases["late_blight"])
	}
	if m.AvgProcessingTimeMs != 10 {
		t.Errorf("Expected 10ms average, got %f", m.AvgProcessingTimeMs)
	}
}

func TestEventPublisher_Unsubscribe(t *testing.T) {
	pub := NewEventPublisher()
	metrics := NewMetricsObserver()
	pub.Subscribe(metrics)
	pub.Unsubscribe(metrics)

	pub.NotifyObservers(context.Background(), PredictionEvent{EventType: BatchCompleted})
	pub.Flush()

	if got := metrics.GetMetrics().Batches; got != 0 {
		t.Errorf("Expected no events after unsubscribe, got %d", got)
	}
}

func TestMetricsObserver_BatchCounters(t *testing.T) {
	m := NewMetricsObserver()
	ctx := context.Background()
	m.OnEvent(ctx, PredictionEvent{EventType: BatchItemFailed})
	m.OnEvent(ctx, PredictionEvent{EventType: BatchItemFailed})
	m.OnEvent(ctx, PredictionEvent{EventType: BatchCompleted})

	got := m.GetMetrics()
	if got.FailedBatchItems != 2 || got.Batches != 1 {
		t.Errorf("Unexpected batch counters: %+v", got)
	}
	if got.AvgProcessingTimeMs != 0 {
		t.Errorf("Expected zero average with no successes, got %f", got.AvgProcessingTimeMs)
	}
}

func TestLoggingObserver_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	obs := NewLoggingObserver(logger)
	obs.OnEvent(context.Background(), PredictionEvent{
		EventType:    PredictionDegraded,
		Source:       "leaf.jpg",
		ErrorKind:    "preprocess",
		ErrorMessage: "Image preprocessing failed",
	})

	out := buf.String()
	for _, want := range []string{`"error_kind":"preprocess"`, `"source":"leaf.jpg"`, `"level":"warning"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected log output to contain %s, got %s", want, out)
		}
	}
}
