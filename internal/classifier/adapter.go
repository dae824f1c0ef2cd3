// Package classifier adapts an opaque image classification model to the
// prediction pipeline.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"

	apperrors "go-crop-inspector/internal/errors"
	"go-crop-inspector/internal/imaging"
)

// DefaultInputSize is the square input resolution of the crop model.
const DefaultInputSize = 224

var (
	channelMean = [3]float32{0.485, 0.456, 0.406}
	channelStd  = [3]float32{0.229, 0.224, 0.225}
)

// Model is the external classification capability. Infer receives a
// 1x3xNxN CHW tensor and returns one raw score per class. Implementations
// must be safe for concurrent use.
type Model interface {
	Infer(input []float32) ([]float32, error)
}

// Classifier turns a canonical payload into a label and confidence.
type Classifier interface {
	Classify(ctx context.Context, payload []byte) (Classification, error)
}

// Classification is the winning class and the full distribution.
type Classification struct {
	Label         string    `json:"label"`
	Index         int       `json:"index"`
	Confidence    float64   `json:"confidence"`
	Probabilities []float64 `json:"probabilities,omitempty"`
}

// Adapter implements Classifier on top of a Model.
type Adapter struct {
	model     Model
	mapping   *ClassMapping
	inputSize int
}

// NewAdapter wires model and mapping. A nil mapping uses DefaultMapping and
// a non-positive inputSize uses DefaultInputSize.
func NewAdapter(model Model, mapping *ClassMapping, inputSize int) *Adapter {
	if mapping == nil {
		mapping = DefaultMapping()
	}
	if inputSize <= 0 {
		inputSize = DefaultInputSize
	}
	return &Adapter{model: model, mapping: mapping, inputSize: inputSize}
}

// Mapping exposes the class mapping in use.
func (a *Adapter) Mapping() *ClassMapping {
	return a.mapping
}

// Classify runs the model over payload. Every failure, including a panic in
// the model, is returned as an inference AppError.
func (a *Adapter) Classify(ctx context.Context, payload []byte) (Classification, error) {
	if err := ctx.Err(); err != nil {
		return Classification{}, apperrors.NewInferenceError("Error during prediction", err)
	}

	img, err := imaging.Decode(payload)
	if err != nil {
		return Classification{}, apperrors.NewInferenceError("Error preprocessing image", errors.Unwrap(err))
	}

	scores, err := a.infer(ToTensor(img, a.inputSize))
	if err != nil {
		return Classification{}, apperrors.NewInferenceError("Error during prediction", err)
	}

	probs, err := Softmax(scores)
	if err != nil {
		return Classification{}, apperrors.NewInferenceError("Error during prediction", err)
	}
	idx := Argmax(probs)

	return Classification{
		Label:         a.mapping.Label(idx),
		Index:         idx,
		Confidence:    probs[idx],
		Probabilities: probs,
	}, nil
}

func (a *Adapter) infer(tensor []float32) (scores []float32, err error) {
	if a.model == nil {
		return nil, errors.New("no model loaded")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	scores, err = a.model.Infer(tensor)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, errors.New("model returned no scores")
	}
	return scores, nil
}

// ToTensor resizes img to size x size and lays it out as CHW float32
// normalised with the ImageNet channel statistics.
func ToTensor(img image.Image, size int) []float32 {
	rgb := imaging.ToRGB(resize.Resize(uint(size), uint(size), img, resize.Bilinear))
	plane := size * size
	out := make([]float32, 3*plane)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := rgb.PixOffset(x, y)
			p := y*size + x
			for c := 0; c < 3; c++ {
				v := float32(rgb.Pix[i+c]) / 255.0
				out[c*plane+p] = (v - channelMean[c]) / channelStd[c]
			}
		}
	}
	return out
}

// Softmax converts raw scores into a probability distribution.
func Softmax(scores []float32) ([]float64, error) {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("model returned non-finite score %v", v)
		}
		if v > maxScore {
			maxScore = v
		}
	}

	probs := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(float64(s) - maxScore)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs, nil
}

// Argmax returns the index of the largest value. Ties resolve to the lowest
// index.
func Argmax(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}
