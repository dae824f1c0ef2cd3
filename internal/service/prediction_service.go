package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"go-crop-inspector/internal/batch"
	apperrors "go-crop-inspector/internal/errors"
	"go-crop-inspector/internal/imaging"
	"go-crop-inspector/internal/logger"
	"go-crop-inspector/internal/predictor"
	"go-crop-inspector/internal/repository"
	"go-crop-inspector/pkg/models"
)

// PredictionService is the application surface used by the HTTP layer.
type PredictionService interface {
	// PredictImage classifies an in-memory image. It never fails; failures
	// come back as a degraded result.
	PredictImage(ctx context.Context, source string, in imaging.Input, opts imaging.Options) models.PredictionResult

	// PredictImageURL downloads imageURL and classifies it. Only download
	// and URL validation failures are returned as errors.
	PredictImageURL(ctx context.Context, imageURL string, opts imaging.Options) (models.PredictionResult, error)

	// PredictBatch classifies uploaded files concurrently.
	PredictBatch(ctx context.Context, items []batch.Item) []models.BatchItemResult

	// ListDiseases exposes the recommendation catalog.
	ListDiseases() models.DiseaseListing
}

type predictionService struct {
	orchestrator *predictor.Orchestrator
	dispatcher   *batch.Dispatcher
	imageRepo    repository.ImageRepository
	fetchTimeout time.Duration
}

// NewPredictionService wires the pipeline components. imageRepo may be nil
// when remote images are not supported.
func NewPredictionService(
	orchestrator *predictor.Orchestrator,
	dispatcher *batch.Dispatcher,
	imageRepo repository.ImageRepository,
	fetchTimeout time.Duration,
) PredictionService {
	return &predictionService{
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
		imageRepo:    imageRepo,
		fetchTimeout: fetchTimeout,
	}
}

func (s *predictionService) PredictImage(ctx context.Context, source string, in imaging.Input, opts imaging.Options) models.PredictionResult {
	return s.orchestrator.PredictOne(ctx, source, in, opts)
}

func (s *predictionService) PredictImageURL(ctx context.Context, imageURL string, opts imaging.Options) (models.PredictionResult, error) {
	if s.imageRepo == nil {
		return models.PredictionResult{}, apperrors.NewInputError("Remote images are not supported", repository.ErrNoImageSource)
	}

	fetchCtx := ctx
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	data, err := s.imageRepo.FetchImage(fetchCtx, imageURL)
	if err != nil {
		logger.WithError(err).WithField("image_url", imageURL).Error("Failed to fetch image")
		return models.PredictionResult{}, err
	}
	logger.WithFields(logrus.Fields{
		"image_url":     imageURL,
		"bytes":         len(data),
		"fetch_time_ms": time.Since(start).Milliseconds(),
	}).Debug("Fetched remote image")

	return s.orchestrator.PredictOne(ctx, imageURL, imaging.RawBytes(data), opts), nil
}

func (s *predictionService) PredictBatch(ctx context.Context, items []batch.Item) []models.BatchItemResult {
	return s.dispatcher.PredictMany(ctx, items)
}

func (s *predictionService) ListDiseases() models.DiseaseListing {
	return s.orchestrator.Catalog().List()
}
