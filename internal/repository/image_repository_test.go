package repository

import (
	"context"
	"errors"
	"testing"

	apperrors "go-crop-inspector/internal/errors"
)

type stubSource struct {
	data  []byte
	err   error
	calls int
}

func (s *stubSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	s.calls++
	return s.data, s.err
}

func TestRemoteImageRepository_FetchImage(t *testing.T) {
	tests := []struct {
		name      string
		source    *stubSource
		url       string
		wantType  apperrors.ErrorType
		wantCalls int
	}{
		{"invalid url", &stubSource{data: []byte{1}}, "ftp://example.com/a.jpg", apperrors.ErrorTypeInput, 0},
		{"plain source error", &stubSource{err: errors.New("reset by peer")}, "https://example.com/a.jpg", apperrors.ErrorTypeNetwork, 1},
		{"typed source error", &stubSource{err: apperrors.NewTimeoutError("Image download timed out", nil)}, "https://example.com/a.jpg", apperrors.ErrorTypeTimeout, 1},
		{"empty body", &stubSource{data: []byte{}}, "https://example.com/a.jpg", apperrors.ErrorTypeInput, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewRemoteImageRepository(tt.source, nil)
			_, err := repo.FetchImage(context.Background(), tt.url)
			if !apperrors.IsType(err, tt.wantType) {
				t.Errorf("Expected %s error, got %v", tt.wantType, err)
			}
			if tt.source.calls != tt.wantCalls {
				t.Errorf("Expected %d fetches, got %d", tt.wantCalls, tt.source.calls)
			}
		})
	}
}

func TestRemoteImageRepository_Success(t *testing.T) {
	repo := NewRemoteImageRepository(&stubSource{data: []byte("jpeg")}, nil)
	data, err := repo.FetchImage(context.Background(), "https://example.com/leaf.jpg")
	if err != nil || string(data) != "jpeg" {
		t.Errorf("Unexpected result %q, %v", data, err)
	}
}

func TestRemoteImageRepository_NoSource(t *testing.T) {
	repo := NewRemoteImageRepository(nil, nil)
	_, err := repo.FetchImage(context.Background(), "https://example.com/leaf.jpg")
	if !errors.Is(err, ErrNoImageSource) {
		t.Errorf("Expected ErrNoImageSource, got %v", err)
	}
}
