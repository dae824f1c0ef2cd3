package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "go-crop-inspector/internal/errors"
)

type azureStorage struct {
	client   *azblob.Client
	account  string
	maxBytes int64
}

// NewAzureStorage reads blobs from accountName with a shared key.
func NewAzureStorage(accountName, accountKey string, maxBytes int64) (ImageSource, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		accountEndpoint(accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}

	return &azureStorage{client: client, account: accountName, maxBytes: maxBytes}, nil
}

func accountEndpoint(account string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net", account)
}

func accountHost(account string) string {
	return strings.ToLower(account) + ".blob.core.windows.net"
}

// ParseBlobURL splits a blob URL into container and blob name. Both
// https://acct.blob.core.windows.net/container/path/to/blob and
// https://acct.blob.core.windows.net/container?blob=path/to/blob are accepted.
func ParseBlobURL(blobURL string) (container, blob string, err error) {
	parsed, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}
	path := strings.TrimPrefix(parsed.Path, "/")
	container, blob, _ = strings.Cut(path, "/")
	if q := parsed.Query().Get("blob"); q != "" {
		blob = q
	}
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("blob URL must name a container and a blob")
	}
	return container, blob, nil
}

func (s *azureStorage) Fetch(ctx context.Context, blobURL string) ([]byte, error) {
	containerName, blobName, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, apperrors.NewInputError("Invalid blob URL", err)
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, apperrors.NewNetworkError("Failed to download blob", err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	data, _, err := readLimited(retryReader, s.maxBytes)
	if err != nil {
		return nil, apperrors.NewNetworkError("Failed to download blob", err)
	}
	return data, nil
}
