package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ModelMetadata describes the exported network. It is read from the JSON
// file written next to the .onnx export; missing fields take defaults.
type ModelMetadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
}

// LoadMetadata reads path (optional) and fills defaults for a square
// inputSize model with numClasses outputs.
func LoadMetadata(path string, inputSize, numClasses int) (ModelMetadata, error) {
	var meta ModelMetadata
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return meta, fmt.Errorf("failed to read metadata: %w", err)
		}
		if err := json.Unmarshal(data, &meta); err != nil {
			return meta, fmt.Errorf("failed to parse metadata: %w", err)
		}
	}

	if meta.ImageSize <= 0 {
		meta.ImageSize = inputSize
	}
	if len(meta.Classes) > 0 {
		numClasses = len(meta.Classes)
	}
	if len(meta.InputShape) == 0 {
		meta.InputShape = []int64{1, 3, int64(meta.ImageSize), int64(meta.ImageSize)}
	}
	if len(meta.OutputShape) == 0 {
		meta.OutputShape = []int64{1, int64(numClasses)}
	}
	if meta.InputName == "" {
		meta.InputName = "input"
	}
	if meta.OutputName == "" {
		meta.OutputName = "output"
	}
	return meta, nil
}

// ONNXModel runs an exported network through onnxruntime. The session is
// bound to one input and one output tensor, so Infer serialises callers.
type ONNXModel struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     ModelMetadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewONNXModel loads modelPath. libPath, when set, points at the
// onnxruntime shared library.
func NewONNXModel(modelPath string, meta ModelMetadata, libPath string) (*ONNXModel, error) {
	if _, err := os.Stat(modelPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("model file not found at %s", modelPath)
		}
		return nil, fmt.Errorf("failed to stat model: %w", err)
	}

	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(meta.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXModel{
		session:      session,
		Metadata:     meta,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Infer implements Model.
func (m *ONNXModel) Infer(input []float32) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dst := m.inputTensor.GetData()
	if len(input) != len(dst) {
		return nil, fmt.Errorf("input shape mismatch: expected %d values, got %d", len(dst), len(input))
	}
	copy(dst, input)

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	out := m.outputTensor.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

// Close releases the session, tensors and runtime environment.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.inputTensor != nil {
		m.inputTensor.Destroy()
		m.inputTensor = nil
	}
	if m.outputTensor != nil {
		m.outputTensor.Destroy()
		m.outputTensor = nil
	}
	if m.session != nil {
		m.session.Destroy()
		m.session = nil
	}
	return ort.DestroyEnvironment()
}
