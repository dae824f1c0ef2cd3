package predictor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"go-crop-inspector/internal/catalog"
	"go-crop-inspector/internal/classifier"
	apperrors "go-crop-inspector/internal/errors"
	"go-crop-inspector/internal/imaging"
	"go-crop-inspector/internal/observer"
	"go-crop-inspector/pkg/models"
)

type fakeClassifier struct {
	label string
	conf  float64
	err   error
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, payload []byte) (classifier.Classification, error) {
	f.calls++
	if f.err != nil {
		return classifier.Classification{}, f.err
	}
	return classifier.Classification{Label: f.label, Confidence: f.conf}, nil
}

func leafPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 12, 12))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 40, 160, 60, 255
	}
	img.Set(3, 3, color.RGBA{120, 80, 20, 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func TestPredictOne_Success(t *testing.T) {
	fc := &fakeClassifier{label: "Late_Blight", conf: 0.91}
	o := New(fc, catalog.Default(), nil)

	got := o.PredictOne(context.Background(), "leaf.png", imaging.RawBytes(leafPNG(t)), imaging.Options{})

	if got.Degraded() {
		t.Fatalf("Expected success, got error %q", got.Error)
	}
	if got.Disease != "Late_Blight" || got.Confidence != 0.91 {
		t.Errorf("Unexpected result %+v", got)
	}
	if got.Recommendations.RiskLevel != models.RiskHigh {
		t.Errorf("Expected case-insensitive lookup to find a High risk record, got %s", got.Recommendations.RiskLevel)
	}
}

func TestPredictOne_UnknownLabelUsesCatalogFallback(t *testing.T) {
	o := New(&fakeClassifier{label: "Unknown", conf: 0.4}, nil, nil)

	got := o.PredictOne(context.Background(), "", imaging.RawBytes(leafPNG(t)), imaging.Options{})
	if got.Degraded() {
		t.Fatalf("Expected success, got %q", got.Error)
	}
	if got.Recommendations.MonitoringFrequency != models.MonitorWeekly {
		t.Errorf("Expected catalog fallback record, got %+v", got.Recommendations)
	}
}

func TestPredictOne_Degrades(t *testing.T) {
	tests := []struct {
		name     string
		input    imaging.Input
		cls      *fakeClassifier
		wantKind apperrors.ErrorType
		wantMsg  string
		classify bool
	}{
		{
			name:     "empty input",
			input:    imaging.RawBytes(nil),
			cls:      &fakeClassifier{label: "rust"},
			wantKind: apperrors.ErrorTypeInput,
			wantMsg:  "No image data provided",
		},
		{
			name:     "blank encoded string",
			input:    imaging.EncodedString("   "),
			cls:      &fakeClassifier{label: "rust"},
			wantKind: apperrors.ErrorTypeInput,
			wantMsg:  "No image data provided",
		},
		{
			name:     "garbage bytes",
			input:    imaging.RawBytes([]byte("definitely not an image")),
			cls:      &fakeClassifier{label: "rust"},
			wantKind: apperrors.ErrorTypePreprocess,
			wantMsg:  "Image preprocessing failed",
		},
		{
			name:     "classifier failure",
			cls:      &fakeClassifier{err: apperrors.NewInferenceError("Error during prediction", errors.New("session closed"))},
			wantKind: apperrors.ErrorTypeInference,
			wantMsg:  "session closed",
			classify: true,
		},
		{
			name:     "plain classifier error",
			cls:      &fakeClassifier{err: errors.New("out of memory")},
			wantKind: apperrors.ErrorTypeInference,
			wantMsg:  "out of memory",
			classify: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.input
			if tt.classify {
				in = imaging.RawBytes(leafPNG(t))
			}
			o := New(tt.cls, nil, nil)
			got := o.PredictOne(context.Background(), "x.png", in, imaging.Options{})

			if got.Disease != UnknownDisease || got.Confidence != 0 {
				t.Errorf("Expected Unknown/0, got %s/%f", got.Disease, got.Confidence)
			}
			if got.FailureKind != string(tt.wantKind) {
				t.Errorf("Expected failure kind %s, got %s", tt.wantKind, got.FailureKind)
			}
			if !strings.Contains(got.Error, tt.wantMsg) {
				t.Errorf("Expected error to contain %q, got %q", tt.wantMsg, got.Error)
			}
			if got.Recommendations.MonitoringFrequency != models.MonitorDaily ||
				got.Recommendations.ImmediateActions[0] != "Unable to process image" {
				t.Errorf("Expected processing failure record, got %+v", got.Recommendations)
			}
			if (tt.cls.calls > 0) != tt.classify {
				t.Errorf("Expected classifier called=%v, got %d calls", tt.classify, tt.cls.calls)
			}
		})
	}
}

func TestPredict_ReturnsTypedErrors(t *testing.T) {
	o := New(nil, nil, nil)
	_, err := o.Predict(context.Background(), "", imaging.RawBytes(leafPNG(t)), imaging.Options{})
	if !apperrors.IsType(err, apperrors.ErrorTypeInference) {
		t.Errorf("Expected inference error without classifier, got %v", err)
	}
}

func TestPredictOne_PublishesEvents(t *testing.T) {
	pub := observer.NewEventPublisher()
	metrics := observer.NewMetricsObserver()
	pub.Subscribe(metrics)

	o := New(&fakeClassifier{label: "rust", conf: 0.7}, nil, pub)
	ctx := context.Background()
	o.PredictOne(ctx, "a.png", imaging.RawBytes(leafPNG(t)), imaging.Options{})
	o.PredictOne(ctx, "b.png", imaging.RawBytes([]byte("nope")), imaging.Options{})
	pub.Flush()

	m := metrics.GetMetrics()
	if m.TotalPredictions != 2 || m.SuccessfulPredictions != 1 || m.DegradedPredictions != 1 {
		t.Errorf("Unexpected metrics %+v", m)
	}
	if m.Diseases["rust"] != 1 {
		t.Errorf("Expected one rust prediction, got %v", m.Diseases)
	}
}

func TestFallback_NonAppError(t *testing.T) {
	got := Fallback(errors.New("disk full"))
	if got.FailureKind != string(apperrors.ErrorTypeInternal) || got.Error != "disk full" {
		t.Errorf("Unexpected fallback %+v", got)
	}
}

type panickingClassifier struct{}

func (panickingClassifier) Classify(context.Context, []byte) (classifier.Classification, error) {
	panic("classifier exploded")
}

func TestPredictOne_RecoversPanics(t *testing.T) {
	o := New(panickingClassifier{}, nil, nil)

	got := o.PredictOne(context.Background(), "leaf.png", imaging.RawBytes(leafPNG(t)), imaging.Options{})

	if got.Disease != UnknownDisease || got.Confidence != 0 {
		t.Errorf("Expected Unknown/0, got %s/%f", got.Disease, got.Confidence)
	}
	if got.FailureKind != string(apperrors.ErrorTypeInternal) {
		t.Errorf("Expected internal failure kind, got %s", got.FailureKind)
	}
	if !strings.Contains(got.Error, "classifier exploded") {
		t.Errorf("Expected panic value in error, got %q", got.Error)
	}
}

func TestPredictOne_DimensionCap(t *testing.T) {
	fc := &fakeClassifier{label: "rust", conf: 0.5}
	o := New(fc, nil, nil)

	huge := imaging.Options{}.WithResize(1<<24, 1<<24)
	got := o.PredictOne(context.Background(), "leaf.png", imaging.RawBytes(leafPNG(t)), huge)
	if got.FailureKind != string(apperrors.ErrorTypePreprocess) {
		t.Errorf("Expected preprocess failure for oversized resize, got %+v", got)
	}

	o.SetMaxDimension(8)
	got = o.PredictOne(context.Background(), "leaf.png", imaging.RawBytes(leafPNG(t)), imaging.Options{})
	if got.FailureKind != string(apperrors.ErrorTypePreprocess) {
		t.Errorf("Expected 12x12 image to exceed an 8 pixel cap, got %+v", got)
	}
	if fc.calls != 0 {
		t.Errorf("Expected classifier not to run, got %d calls", fc.calls)
	}
}

func TestRecovered(t *testing.T) {
	cause := errors.New("nil map write")
	if err := Recovered(cause); !errors.Is(err, cause) || !apperrors.IsType(err, apperrors.ErrorTypeInternal) {
		t.Errorf("Expected internal error wrapping the panic error, got %v", err)
	}
	if err := Recovered(42); !strings.Contains(err.Error(), "42") {
		t.Errorf("Expected panic value in message, got %v", err)
	}
}
