package repository

import (
	"context"
	"image"

	"github.com/anime-shed/heatmap-inspector/pkg/models"
)

// ImageRepository defines the interface for remote heatmap access
type ImageRepository interface {
	// FetchImage retrieves an image from a URL
	FetchImage(ctx context.Context, imageURL string) (image.Image, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}

// ResultRepository is the append-only table of computed averages
type ResultRepository interface {
	// Append adds one row; rows for the same place and date are not merged
	Append(ctx context.Context, result models.AggregateResult) error

	// List returns every stored row in insertion order
	List(ctx context.Context) ([]models.AggregateResult, error)

	Close() error
}
