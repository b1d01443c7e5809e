package repository

import (
	"context"
	"fmt"
	"image"

	"github.com/anime-shed/heatmap-inspector/internal/storage"
	"github.com/anime-shed/heatmap-inspector/pkg/validation"
)

// FetcherImageRepository implements ImageRepository on top of an ImageFetcher
type FetcherImageRepository struct {
	fetcher   storage.ImageFetcher
	validator *validation.URLValidator
}

// NewFetcherImageRepository creates a new image repository
func NewFetcherImageRepository(fetcher storage.ImageFetcher, validator *validation.URLValidator) ImageRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &FetcherImageRepository{
		fetcher:   fetcher,
		validator: validator,
	}
}

// FetchImage validates and retrieves an image from a URL
func (r *FetcherImageRepository) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	if err := r.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}
	return r.fetcher.FetchImage(ctx, imageURL)
}

// ValidateImageURL validates if the provided URL is acceptable
func (r *FetcherImageRepository) ValidateImageURL(imageURL string) error {
	if err := r.validator.ValidateImageURL(imageURL); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidImageURL, err)
	}
	return nil
}
