package repository

import (
	"context"

	apperrors "go-crop-inspector/internal/errors"
	"go-crop-inspector/internal/storage"
	"go-crop-inspector/pkg/validation"
)

// ImageRepository resolves remote image references to raw bytes.
type ImageRepository interface {
	// FetchImage validates imageURL and downloads it
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

// RemoteImageRepository implements ImageRepository on an ImageSource
type RemoteImageRepository struct {
	source    storage.ImageSource
	validator *validation.URLValidator
}

// NewRemoteImageRepository creates a repository. A nil validator accepts
// any http or https URL.
func NewRemoteImageRepository(source storage.ImageSource, validator *validation.URLValidator) ImageRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &RemoteImageRepository{source: source, validator: validator}
}

func (r *RemoteImageRepository) FetchImage(ctx context.Context, imageURL string) ([]byte, error) {
	if err := r.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}
	if r.source == nil {
		return nil, apperrors.NewInternalError("Remote images are not supported", ErrNoImageSource)
	}

	data, err := r.source.Fetch(ctx, imageURL)
	if err != nil {
		if _, ok := apperrors.As(err); ok {
			return nil, err
		}
		return nil, apperrors.NewNetworkError("Failed to fetch image", err)
	}
	if len(data) == 0 {
		return nil, apperrors.NewInputError("No image data provided", ErrEmptyImage)
	}
	return data, nil
}

func (r *RemoteImageRepository) ValidateImageURL(imageURL string) error {
	return r.validator.ValidateImageURL(imageURL)
}
