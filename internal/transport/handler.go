package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"go-crop-inspector/internal/auth"
	"go-crop-inspector/internal/batch"
	"go-crop-inspector/internal/config"
	apperrors "go-crop-inspector/internal/errors"
	"go-crop-inspector/internal/imaging"
	"go-crop-inspector/internal/logger"
	"go-crop-inspector/internal/observer"
	"go-crop-inspector/internal/service"
	"go-crop-inspector/pkg/models"
	"go-crop-inspector/pkg/validation"
)

const version = "1.0.0"

// NewHandler builds the HTTP API. metrics may be nil, in which case
// /api/metrics is not registered.
func NewHandler(svc service.PredictionService, verifier auth.Verifier, metrics *observer.MetricsObserver, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestID(),
		requestLogger(),
		corsPolicy(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
	)

	api := r.Group("/api")
	api.GET("/health", healthCheck)

	protected := api.Group("", auth.Middleware(verifier))
	protected.POST("/predict", predict(svc, cfg))
	protected.POST("/predict/batch", predictBatch(svc, cfg))
	protected.GET("/diseases", listDiseases(svc))
	if metrics != nil {
		protected.GET("/metrics", metricsSnapshot(metrics))
	}

	r.NoRoute(func(c *gin.Context) {
		respondError(c, apperrors.NewNotFoundError("Resource not found", nil))
	})

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "AI Model API is running",
		"version": version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func predict(svc service.PredictionService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		var (
			result models.PredictionResult
			err    error
		)
		if isMultipart(c) {
			result, err = predictUpload(ctx, c, svc, cfg.MaxImageDimension)
		} else {
			result, err = predictJSON(ctx, c, svc, cfg.MaxImageDimension)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		respondPrediction(c, result)
	}
}

func predictUpload(ctx context.Context, c *gin.Context, svc service.PredictionService, maxDimension int) (models.PredictionResult, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return models.PredictionResult{}, apperrors.NewInputError("No image data provided", nil)
		}
		return models.PredictionResult{}, uploadError(err)
	}
	if err := validation.ValidateUploadFilename(fh.Filename); err != nil {
		return models.PredictionResult{}, err
	}

	opts, err := parseOptionsField(c.PostForm("options"), maxDimension)
	if err != nil {
		return models.PredictionResult{}, err
	}

	data, err := readUpload(fh)
	if err != nil {
		return models.PredictionResult{}, err
	}
	return svc.PredictImage(ctx, fh.Filename, imaging.RawBytes(data), opts), nil
}

func predictJSON(ctx context.Context, c *gin.Context, svc service.PredictionService, maxDimension int) (models.PredictionResult, error) {
	var req models.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return models.PredictionResult{}, apperrors.NewInputError("No image data provided", nil)
		}
		return models.PredictionResult{}, bodyError(err)
	}

	opts, err := imaging.OptionsFromRequest(req.Options, maxDimension)
	if err != nil {
		return models.PredictionResult{}, err
	}

	switch {
	case strings.TrimSpace(req.Image) != "":
		return svc.PredictImage(ctx, "json", imaging.EncodedString(req.Image), opts), nil
	case strings.TrimSpace(req.ImageURL) != "":
		return svc.PredictImageURL(ctx, req.ImageURL, opts)
	default:
		return models.PredictionResult{}, apperrors.NewInputError("No image data provided", nil)
	}
}

func predictBatch(svc service.PredictionService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		form, err := c.MultipartForm()
		if err != nil {
			if errors.Is(err, http.ErrNotMultipart) {
				respondError(c, apperrors.NewInputError("No files uploaded", nil))
				return
			}
			respondError(c, uploadError(err))
			return
		}
		files, ok := form.File["files"]
		if !ok {
			respondError(c, apperrors.NewInputError("No files uploaded", nil))
			return
		}
		if len(files) == 0 {
			respondError(c, apperrors.NewInputError("No files selected", nil))
			return
		}

		items := make([]batch.Item, 0, len(files))
		for _, fh := range files {
			data, err := readUpload(fh)
			if err != nil {
				respondError(c, err)
				return
			}
			items = append(items, batch.Item{Filename: fh.Filename, Data: data})
		}

		results := svc.PredictBatch(ctx, items)
		c.JSON(http.StatusOK, models.NewSuccessResponse(results))
	}
}

func listDiseases(svc service.PredictionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.NewSuccessResponse(svc.ListDiseases()))
	}
}

func metricsSnapshot(metrics *observer.MetricsObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.NewSuccessResponse(metrics.GetMetrics()))
	}
}

// respondPrediction maps a pipeline outcome to a response. Input and
// preprocess failures are the client's fault and answered with 400; a
// degraded inference result is still a successful response.
func respondPrediction(c *gin.Context, result models.PredictionResult) {
	switch apperrors.ErrorType(result.FailureKind) {
	case apperrors.ErrorTypeInput, apperrors.ErrorTypePreprocess:
		logRequestError(c, http.StatusBadRequest, result.Error)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status: "error",
			Error:  result.Error,
			Data:   result,
		})
	default:
		c.JSON(http.StatusOK, models.NewSuccessResponse(result))
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

func parseOptionsField(raw string, maxDimension int) (imaging.Options, error) {
	if strings.TrimSpace(raw) == "" {
		return imaging.OptionsFromRequest(nil, maxDimension)
	}
	var req models.PreprocessOptionsRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return imaging.Options{}, apperrors.NewInputError("Invalid options", err)
	}
	return imaging.OptionsFromRequest(&req, maxDimension)
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("Failed to open upload %s", fh.Filename), err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Sprintf("Failed to read upload %s", fh.Filename), err)
	}
	return data, nil
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.NewInputError("Request body too large", err)
	}
	return apperrors.NewInputError("Invalid multipart form", err)
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.NewInputError("Request body too large", err)
	}
	return apperrors.NewInputError("Invalid JSON body", err)
}

func respondError(c *gin.Context, err error) {
	code := determineStatusCode(err)
	message := err.Error()
	if appErr, ok := apperrors.As(err); ok {
		message = appErr.Message
	}
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
		"request_id":  c.GetString(requestIDKey),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.NewErrorResponse(message))
}

func logRequestError(c *gin.Context, code int, message string) {
	logger.WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"ip":          c.ClientIP(),
		"request_id":  c.GetString(requestIDKey),
		"error":       message,
	}).Warn("Prediction rejected")
}

func determineStatusCode(err error) int {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
