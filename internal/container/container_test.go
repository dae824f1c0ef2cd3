package container

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"go-crop-inspector/internal/catalog"
	"go-crop-inspector/internal/classifier"
	"go-crop-inspector/internal/config"
)

type constantModel struct{}

func (constantModel) Infer(input []float32) ([]float32, error) {
	scores := make([]float32, 14)
	scores[9] = 4 // powdery_mildew
	return scores, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Port:               "5000",
		RequestTimeout:     5 * time.Second,
		ImageFetchTimeout:  time.Second,
		MaxRequestBodySize: 1 << 20,
		UploadDir:          filepath.Join(dir, "uploads"),
		BatchWorkers:       4,
		ModelPath:          filepath.Join(dir, "best_model.onnx"),
		ClassMappingPath:   filepath.Join(dir, "class_mapping.json"),
		ModelInputSize:     32,
		AuthJWTSecret:      "container-secret",
	}
}

func TestNewContainer_MissingModelFails(t *testing.T) {
	_, err := NewContainer(testConfig(t))
	if err == nil || !strings.Contains(err.Error(), "model file not found") {
		t.Errorf("Expected missing model error, got %v", err)
	}
}

func TestBuild_ServesPredictions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)

	c, err := build(cfg, constantModel{}, classifier.DefaultMapping(), cfg.ModelInputSize)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	defer c.Close()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "grower-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(cfg.AuthJWTSecret))
	if err != nil {
		t.Fatal(err)
	}

	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = 90
	}
	var pngBuf bytes.Buffer
	png.Encode(&pngBuf, img)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, _ := w.CreateFormFile("file", "leaf.png")
	part.Write(pngBuf.Bytes())
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/predict", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Disease string `json:"disease"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.Disease != "powdery_mildew" {
		t.Errorf("Expected powdery_mildew, got %q", resp.Data.Disease)
	}
}

func TestBuild_RequiresAuthConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.AuthJWTSecret = ""
	if _, err := build(cfg, constantModel{}, nil, 32); err == nil {
		t.Error("Expected error without token verification settings")
	}
}

func TestBuild_RedisUnavailableDisablesCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisURL = "127.0.0.1:1"
	c, err := build(cfg, constantModel{}, nil, 32)
	if err != nil {
		t.Fatalf("Expected cache failure to be tolerated, got %v", err)
	}
	c.Close()
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadClassifierConfig_MappingSources(t *testing.T) {
	tests := []struct {
		name       string
		mapping    string
		metadata   string
		wantLen    int
		wantLabels map[int]string
	}{
		{
			name:       "built-in default",
			wantLen:    14,
			wantLabels: map[int]string{0: "healthy", 9: "powdery_mildew"},
		},
		{
			name:       "metadata classes without mapping file",
			metadata:   `{"classes": ["healthy", "leaf_rust", "root_rot"]}`,
			wantLen:    3,
			wantLabels: map[int]string{1: "leaf_rust", 2: "root_rot"},
		},
		{
			name:       "mapping file wins over metadata",
			mapping:    `{"0": "late_blight", "1": "healthy"}`,
			metadata:   `{"classes": ["healthy", "leaf_rust", "root_rot"]}`,
			wantLen:    2,
			wantLabels: map[int]string{0: "late_blight", 1: "healthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.mapping != "" {
				writeFile(t, cfg.ClassMappingPath, tt.mapping)
			}
			if tt.metadata != "" {
				cfg.ModelMetadataPath = writeFile(t, filepath.Join(t.TempDir(), "metadata.json"), tt.metadata)
			}

			mapping, meta, err := loadClassifierConfig(cfg)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if mapping.Len() != tt.wantLen {
				t.Errorf("Expected %d classes, got %d", tt.wantLen, mapping.Len())
			}
			for idx, want := range tt.wantLabels {
				if got := mapping.Label(idx); got != want {
					t.Errorf("Label(%d): expected %s, got %s", idx, want, got)
				}
			}
			if meta.ImageSize != cfg.ModelInputSize {
				t.Errorf("Expected image size %d, got %d", cfg.ModelInputSize, meta.ImageSize)
			}
		})
	}
}

func TestLoadClassifierConfig_InvalidMetadataClasses(t *testing.T) {
	cfg := testConfig(t)
	cfg.ModelMetadataPath = writeFile(t, filepath.Join(t.TempDir(), "metadata.json"), `{"classes": ["healthy", " "]}`)

	if _, _, err := loadClassifierConfig(cfg); err == nil || !strings.Contains(err.Error(), "model metadata") {
		t.Errorf("Expected metadata class error, got %v", err)
	}
}

func TestUncatalogued(t *testing.T) {
	cat := catalog.Default()
	if got := uncatalogued(classifier.DefaultMapping(), cat); len(got) != 0 {
		t.Errorf("Expected every default class to have recommendations, missing %v", got)
	}

	m, err := classifier.NewClassMapping([]string{"healthy", "citrus_canker", "Late_Blight"})
	if err != nil {
		t.Fatal(err)
	}
	if got := uncatalogued(m, cat); !reflect.DeepEqual(got, []string{"citrus_canker"}) {
		t.Errorf("Expected [citrus_canker], got %v", got)
	}
	if got := uncatalogued(nil, cat); got != nil {
		t.Errorf("Expected nil for a missing mapping, got %v", got)
	}
}
