package container

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"go-crop-inspector/internal/auth"
	"go-crop-inspector/internal/batch"
	"go-crop-inspector/internal/cache"
	"go-crop-inspector/internal/catalog"
	"go-crop-inspector/internal/classifier"
	"go-crop-inspector/internal/config"
	"go-crop-inspector/internal/logger"
	"go-crop-inspector/internal/observer"
	"go-crop-inspector/internal/predictor"
	"go-crop-inspector/internal/repository"
	"go-crop-inspector/internal/service"
	"go-crop-inspector/internal/spool"
	"go-crop-inspector/internal/storage"
	"go-crop-inspector/internal/transport"
)

// Container holds all application dependencies
type Container struct {
	config  *config.Config
	catalog *catalog.Catalog
	events  *observer.EventPublisher
	metrics *observer.MetricsObserver
	service service.PredictionService
	handler http.Handler
	closers []io.Closer
}

// NewContainer loads the model and builds the dependency graph. A missing
// model file is fatal; a missing class mapping falls back to the default.
func NewContainer(cfg *config.Config) (*Container, error) {
	mapping, meta, err := loadClassifierConfig(cfg)
	if err != nil {
		return nil, err
	}

	model, err := classifier.NewONNXModel(cfg.ModelPath, meta, cfg.OnnxRuntimeLib)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"model_path":   cfg.ModelPath,
		"input_shape":  meta.InputShape,
		"output_shape": meta.OutputShape,
	}).Info("Model loaded")

	c, err := build(cfg, model, mapping, meta.ImageSize)
	if err != nil {
		model.Close()
		return nil, err
	}
	c.closers = append(c.closers, model)
	return c, nil
}

// loadClassifierConfig resolves the class mapping and model metadata. A
// mapping file wins; without one the labels embedded in the metadata are
// used, and only then the built-in default.
func loadClassifierConfig(cfg *config.Config) (*classifier.ClassMapping, classifier.ModelMetadata, error) {
	mapping, usedDefault, err := classifier.LoadClassMapping(cfg.ClassMappingPath)
	if err != nil {
		return nil, classifier.ModelMetadata{}, fmt.Errorf("failed to load class mapping: %w", err)
	}

	meta, err := classifier.LoadMetadata(cfg.ModelMetadataPath, cfg.ModelInputSize, mapping.Len())
	if err != nil {
		return nil, meta, fmt.Errorf("failed to load model metadata: %w", err)
	}

	switch {
	case usedDefault && len(meta.Classes) > 0:
		mapping, err = classifier.NewClassMapping(meta.Classes)
		if err != nil {
			return nil, meta, fmt.Errorf("invalid classes in model metadata: %w", err)
		}
		logger.WithField("classes", mapping.Len()).Info("Class mapping taken from model metadata")
	case usedDefault:
		logger.WithField("path", cfg.ClassMappingPath).Warn("Class mapping not found, using default mapping")
	default:
		if missing := mapping.Missing(); len(missing) > 0 {
			logger.WithField("missing_indices", missing).Warn("Class mapping has gaps, default labels will be used")
		}
		if len(meta.Classes) > 0 && len(meta.Classes) != mapping.Len() {
			logger.WithFields(logrus.Fields{
				"mapping_classes":  mapping.Len(),
				"metadata_classes": len(meta.Classes),
			}).Warn("Class mapping and model metadata disagree on class count")
		}
	}
	return mapping, meta, nil
}

// uncatalogued lists mapped labels with no recommendation record.
func uncatalogued(mapping *classifier.ClassMapping, cat *catalog.Catalog) []string {
	if mapping == nil {
		return nil
	}
	var out []string
	for _, label := range mapping.Labels() {
		if !cat.Has(label) {
			out = append(out, label)
		}
	}
	return out
}

// build wires everything above the model.
func build(cfg *config.Config, model classifier.Model, mapping *classifier.ClassMapping, inputSize int) (*Container, error) {
	c := &Container{config: cfg}

	var cls classifier.Classifier = classifier.NewAdapter(model, mapping, inputSize)
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := cache.Connect(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, classification cache disabled")
		} else {
			store := cache.NewRedisStore(client)
			c.closers = append(c.closers, store)
			cls = cache.NewCachingClassifier(cls, store, cfg.CacheTTL)
			logger.WithField("ttl", cfg.CacheTTL.String()).Info("Classification cache enabled")
		}
	}

	c.events = observer.NewEventPublisher()
	c.metrics = observer.NewMetricsObserver()
	c.events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	c.events.Subscribe(c.metrics)

	c.catalog = catalog.Default()
	if labels := uncatalogued(mapping, c.catalog); len(labels) > 0 {
		logger.WithField("labels", labels).Warn("Classes without recommendations will use the generic record")
	}
	orchestrator := predictor.New(cls, c.catalog, c.events)
	orchestrator.SetMaxDimension(cfg.MaxImageDimension)

	sp, err := spool.New(cfg.UploadDir)
	if err != nil {
		c.Close()
		return nil, err
	}
	dispatcher := batch.NewDispatcher(orchestrator, sp, cfg.BatchWorkers, c.events)

	imageRepo, err := newImageRepository(cfg)
	if err != nil {
		c.Close()
		return nil, err
	}

	verifier, err := auth.NewJWTVerifier(auth.Options{
		Secret:       cfg.AuthJWTSecret,
		PublicKeyPEM: cfg.AuthJWTPublicKey,
		Issuer:       cfg.AuthIssuer,
		Audience:     cfg.AuthAudience,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}

	c.service = service.NewPredictionService(orchestrator, dispatcher, imageRepo, cfg.ImageFetchTimeout)
	c.handler = transport.NewHandler(c.service, verifier, c.metrics, cfg)
	return c, nil
}

func newImageRepository(cfg *config.Config) (repository.ImageRepository, error) {
	web := storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout, cfg.MaxRequestBodySize)

	var blob storage.ImageSource
	if cfg.AzureStorageAccount != "" {
		var err error
		blob, err = storage.NewAzureStorage(cfg.AzureStorageAccount, cfg.AzureStorageKey, cfg.MaxRequestBodySize)
		if err != nil {
			return nil, fmt.Errorf("failed to configure azure storage: %w", err)
		}
	}

	return repository.NewRemoteImageRepository(storage.NewRouter(web, blob, cfg.AzureStorageAccount), nil), nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Service returns the prediction service
func (c *Container) Service() service.PredictionService {
	return c.service
}

// Close flushes pending events and releases the model and cache.
func (c *Container) Close() error {
	if c.events != nil {
		c.events.Flush()
	}
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
