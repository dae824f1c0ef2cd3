package imaging

import (
	"fmt"

	apperrors "go-crop-inspector/internal/errors"
	"go-crop-inspector/pkg/models"
)

// Size is a target raster size in pixels.
type Size struct {
	Width  int
	Height int
}

// DefaultMaxDimension bounds both the decoded image and any resize target
// when Options.MaxDimension is unset.
const DefaultMaxDimension = 8192

// Options configures the transform chain applied by Normalize. The zero
// value is the identity transform apart from RGB coercion.
type Options struct {
	Resize    *Size
	Normalize bool
	Enhance   bool

	// MaxDimension caps width and height of the decoded image and of the
	// resize target. Zero means DefaultMaxDimension.
	MaxDimension int
}

func (opts Options) maxDimension() int {
	if opts.MaxDimension > 0 {
		return opts.MaxDimension
	}
	return DefaultMaxDimension
}

// ContrastFactor is the multiplier applied when Enhance is set.
const ContrastFactor = 1.2

// WithResize returns a copy of opts that resizes to width x height.
func (opts Options) WithResize(width, height int) Options {
	opts.Resize = &Size{Width: width, Height: height}
	return opts
}

// OptionsFromRequest converts the JSON options object. A nil request yields
// Options with only the dimension cap set. maxDimension <= 0 means
// DefaultMaxDimension.
func OptionsFromRequest(req *models.PreprocessOptionsRequest, maxDimension int) (Options, error) {
	opts := Options{MaxDimension: maxDimension}
	if req == nil {
		return opts, nil
	}
	opts.Normalize = req.Normalize
	opts.Enhance = req.Enhance

	if len(req.Resize) > 0 {
		if len(req.Resize) != 2 {
			return Options{}, apperrors.NewInputError(
				fmt.Sprintf("resize must be [width, height], got %d values", len(req.Resize)), nil)
		}
		if req.Resize[0] <= 0 || req.Resize[1] <= 0 {
			return Options{}, apperrors.NewInputError(
				fmt.Sprintf("resize dimensions must be positive, got %dx%d", req.Resize[0], req.Resize[1]), nil)
		}
		if limit := opts.maxDimension(); req.Resize[0] > limit || req.Resize[1] > limit {
			return Options{}, apperrors.NewInputError(
				fmt.Sprintf("resize dimensions must not exceed %d, got %dx%d", limit, req.Resize[0], req.Resize[1]), nil)
		}
		opts = opts.WithResize(req.Resize[0], req.Resize[1])
	}
	return opts, nil
}
