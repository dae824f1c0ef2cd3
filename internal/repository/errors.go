package repository

import "errors"

var (
	// ErrNoImageSource indicates no fetcher was configured
	ErrNoImageSource = errors.New("no image source configured")

	// ErrEmptyImage indicates the remote image had no content
	ErrEmptyImage = errors.New("remote image is empty")
)
