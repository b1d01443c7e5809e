package storage

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

const blobHostSuffix = ".blob.core.windows.net"

// IsBlobURL reports whether rawURL points at Azure Blob Storage
func IsBlobURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), blobHostSuffix)
}

// ParseBlobURL splits https://<account>.blob.core.windows.net/<container>/<blob>
// into container and blob name.
func ParseBlobURL(blobURL string) (container, blob string, err error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}

	path := strings.TrimPrefix(u.Path, "/")
	container, blob, ok := strings.Cut(path, "/")
	if !ok || container == "" || blob == "" {
		return "", "", fmt.Errorf("invalid blob URL %q: expected /<container>/<blob>", blobURL)
	}
	return container, blob, nil
}

type azureStorage struct {
	client   *azblob.Client
	maxBytes int64
}

// NewAzureImageFetcher creates an ImageFetcher reading blobs with a shared key
func NewAzureImageFetcher(accountName string, accountKey string) (ImageFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s%s", accountName, blobHostSuffix),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &azureStorage{client: client, maxBytes: DefaultMaxImageBytes}, nil
}

func (s *azureStorage) FetchImage(ctx context.Context, blobURL string) (image.Image, error) {
	containerName, blobName, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, err
	}

	downloadResponse, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: download failed: %w", ErrFetchFailed, err)
	}

	retryReader := downloadResponse.Body
	defer retryReader.Close()

	img, _, err := DecodeImage(io.LimitReader(retryReader, s.maxBytes))
	return img, err
}

// RoutingImageFetcher sends blob URLs to Azure when configured and
// everything else over plain HTTP.
type RoutingImageFetcher struct {
	http  ImageFetcher
	azure ImageFetcher
}

// NewRoutingImageFetcher creates a router. azure may be nil.
func NewRoutingImageFetcher(http, azure ImageFetcher) *RoutingImageFetcher {
	return &RoutingImageFetcher{http: http, azure: azure}
}

func (r *RoutingImageFetcher) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	if r.azure != nil && IsBlobURL(imageURL) {
		return r.azure.FetchImage(ctx, imageURL)
	}
	return r.http.FetchImage(ctx, imageURL)
}
