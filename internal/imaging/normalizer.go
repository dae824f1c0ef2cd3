// Package imaging turns uploaded images into the canonical JPEG payload the
// classifier consumes.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	// Registered decoders for accepted upload formats.
	_ "image/gif"
	_ "image/png"

	"github.com/nfnt/resize"

	apperrors "go-crop-inspector/internal/errors"
)

// JPEGQuality is used for every canonical payload.
const JPEGQuality = 75

var (
	errEmptyPayload     = errors.New("image payload is empty")
	errMalformedDataURI = errors.New("data URI has no ',' separator")
)

// Normalize decodes in, applies opts and re-encodes the result as JPEG.
// Every failure is a preprocess AppError.
func Normalize(in Input, opts Options) ([]byte, error) {
	data, err := in.Bytes()
	if err != nil {
		return nil, err
	}
	limit := opts.maxDimension()
	if opts.Resize != nil {
		if opts.Resize.Width <= 0 || opts.Resize.Height <= 0 {
			return nil, apperrors.NewPreprocessError("Image preprocessing failed",
				errors.New("resize dimensions must be positive"))
		}
		if opts.Resize.Width > limit || opts.Resize.Height > limit {
			return nil, apperrors.NewPreprocessError("Image preprocessing failed",
				fmt.Errorf("resize target %dx%d exceeds %d pixels per side", opts.Resize.Width, opts.Resize.Height, limit))
		}
	}

	img, err := DecodeWithin(data, limit)
	if err != nil {
		return nil, err
	}

	rgb := ToRGB(img)

	if opts.Resize != nil {
		rgb = Resize(rgb, opts.Resize.Width, opts.Resize.Height)
	}
	if opts.Normalize {
		normalizeIntensities(rgb)
	}
	if opts.Enhance {
		adjustContrast(rgb, ContrastFactor)
	}

	return Encode(rgb)
}

// Decode parses encoded image bytes no larger than DefaultMaxDimension per side.
func Decode(data []byte) (image.Image, error) {
	return DecodeWithin(data, DefaultMaxDimension)
}

// DecodeWithin parses encoded image bytes after checking the header: images
// wider or taller than maxDimension are rejected before any pixel buffer is
// allocated.
func DecodeWithin(data []byte, maxDimension int) (image.Image, error) {
	if len(data) == 0 {
		return nil, apperrors.NewPreprocessError("Image preprocessing failed", errEmptyPayload)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewPreprocessError("Image preprocessing failed", err)
	}
	if cfg.Width > maxDimension || cfg.Height > maxDimension {
		return nil, apperrors.NewPreprocessError("Image preprocessing failed",
			fmt.Errorf("image is %dx%d, limit is %d pixels per side", cfg.Width, cfg.Height, maxDimension))
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.NewPreprocessError("Image preprocessing failed", err)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, apperrors.NewPreprocessError("Image preprocessing failed", errors.New("image has no pixels"))
	}
	return img, nil
}

// Encode writes img as a canonical JPEG payload.
func Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, apperrors.NewPreprocessError("Image preprocessing failed", err)
	}
	return buf.Bytes(), nil
}

// ToRGB copies img into an opaque RGBA raster anchored at the origin. Alpha
// is discarded rather than composited; palette and grey images are expanded.
func ToRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := dst.PixOffset(x-b.Min.X, y-b.Min.Y)
			dst.Pix[i+0] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}

// Resize scales img to exactly width x height with a Lanczos filter. Aspect
// ratio is not preserved.
func Resize(img *image.RGBA, width, height int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	return ToRGB(resize.Resize(uint(width), uint(height), img, resize.Lanczos3))
}

// normalizeIntensities runs the [0,1] float pass and maps back to 8 bits.
func normalizeIntensities(img *image.RGBA) {
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(img.Pix[i+c]) / 255.0
			img.Pix[i+c] = clampByte(v * 255.0)
		}
	}
}

// adjustContrast scales every channel away from the mean grey level.
func adjustContrast(img *image.RGBA, factor float64) {
	mean := meanLuma(img)
	for i := 0; i < len(img.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(img.Pix[i+c])
			img.Pix[i+c] = clampByte(mean + factor*(v-mean))
		}
	}
}

// meanLuma is the ITU-R 601 grey mean rounded to an integer level.
func meanLuma(img *image.RGBA) float64 {
	n := len(img.Pix) / 4
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(img.Pix); i += 4 {
		r := float64(img.Pix[i])
		g := float64(img.Pix[i+1])
		b := float64(img.Pix[i+2])
		sum += math.Floor((r*299 + g*587 + b*114) / 1000)
	}
	return math.Floor(sum/float64(n) + 0.5)
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
