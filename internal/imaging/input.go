package imaging

import (
	"encoding/base64"
	"strings"

	apperrors "go-crop-inspector/internal/errors"
)

// InputKind tags how an Input carries its image.
type InputKind int

const (
	KindRawBytes InputKind = iota
	KindEncodedString
)

func (k InputKind) String() string {
	if k == KindEncodedString {
		return "encoded_string"
	}
	return "raw_bytes"
}

// Input is an image as received at the ingestion boundary: either raw file
// bytes or a base64 string, optionally wrapped in a data URI.
type Input struct {
	kind    InputKind
	raw     []byte
	encoded string
}

// RawBytes wraps uploaded file contents.
func RawBytes(b []byte) Input {
	return Input{kind: KindRawBytes, raw: b}
}

// EncodedString wraps a base64 or data URI string.
func EncodedString(s string) Input {
	return Input{kind: KindEncodedString, encoded: s}
}

func (in Input) Kind() InputKind {
	return in.kind
}

// Empty reports whether no image data was supplied at all.
func (in Input) Empty() bool {
	if in.kind == KindEncodedString {
		return strings.TrimSpace(in.encoded) == ""
	}
	return len(in.raw) == 0
}

// Bytes resolves the input to the encoded image file bytes.
func (in Input) Bytes() ([]byte, error) {
	if in.kind == KindRawBytes {
		return in.raw, nil
	}
	return decodeBase64Image(in.encoded)
}

func decodeBase64Image(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		comma := strings.IndexByte(s, ',')
		if comma < 0 {
			return nil, apperrors.NewPreprocessError("Image preprocessing failed", errMalformedDataURI)
		}
		s = s[comma+1:]
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t', ' ':
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some clients strip the padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, apperrors.NewPreprocessError("Image preprocessing failed", err)
	}
	return data, nil
}
