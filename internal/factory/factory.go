package factory

import (
	"fmt"
	"time"

	"github.com/anime-shed/heatmap-inspector/internal/analyzer"
	"github.com/anime-shed/heatmap-inspector/internal/config"
	"github.com/anime-shed/heatmap-inspector/internal/legend"
	"github.com/anime-shed/heatmap-inspector/internal/repository"
	"github.com/anime-shed/heatmap-inspector/internal/storage"
)

// StorageType represents different image sources
type StorageType string

const (
	// HTTPStorage for plain HTTP(S) image fetching
	HTTPStorage StorageType = "http"
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = "azure"
	// RoutingStorage sends blob URLs to Azure and everything else over HTTP
	RoutingStorage StorageType = "routing"
)

// AnalyzerFactory creates concentration analyzers
type AnalyzerFactory interface {
	CreateAnalyzer(workers int) analyzer.ConcentrationAnalyzer
}

// StorageFactory creates image fetchers
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.ImageFetcher, error)
}

// ResultStoreFactory creates the result table backend
type ResultStoreFactory interface {
	CreateResultStore(kind string, lg *legend.Legend) (repository.ResultRepository, error)
}

// analyzerFactory implements AnalyzerFactory
type analyzerFactory struct{}

// NewAnalyzerFactory creates a new analyzer factory
func NewAnalyzerFactory() AnalyzerFactory {
	return &analyzerFactory{}
}

// CreateAnalyzer creates an analyzer with its own worker pool
func (f *analyzerFactory) CreateAnalyzer(workers int) analyzer.ConcentrationAnalyzer {
	return analyzer.NewConcentrationAnalyzer(workers)
}

// storageFactory implements StorageFactory
type storageFactory struct {
	fetchTimeout time.Duration
	azureAccount string
	azureKey     string
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(cfg *config.Config) StorageFactory {
	return &storageFactory{
		fetchTimeout: cfg.ImageFetchTimeout,
		azureAccount: cfg.AzureStorageAccount,
		azureKey:     cfg.AzureStorageKey,
	}
}

// CreateStorage creates an image fetcher based on the specified type
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.ImageFetcher, error) {
	switch storageType {
	case HTTPStorage:
		return f.httpFetcher(), nil
	case AzureStorage:
		if f.azureAccount == "" || f.azureKey == "" {
			return nil, fmt.Errorf("azure storage requires an account name and key")
		}
		return storage.NewAzureImageFetcher(f.azureAccount, f.azureKey)
	case RoutingStorage:
		var azure storage.ImageFetcher
		if f.azureAccount != "" && f.azureKey != "" {
			var err error
			if azure, err = storage.NewAzureImageFetcher(f.azureAccount, f.azureKey); err != nil {
				return nil, err
			}
		}
		return storage.NewRoutingImageFetcher(f.httpFetcher(), azure), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

func (f *storageFactory) httpFetcher() *storage.HTTPImageFetcher {
	var opts []storage.HTTPFetcherOption
	if f.fetchTimeout > 0 {
		opts = append(opts, storage.WithFetchTimeout(f.fetchTimeout))
	}
	return storage.NewHTTPImageFetcher(opts...)
}

// resultStoreFactory implements ResultStoreFactory
type resultStoreFactory struct {
	resultTable string
	sqlitePath  string
}

// NewResultStoreFactory creates a new result store factory
func NewResultStoreFactory(cfg *config.Config) ResultStoreFactory {
	return &resultStoreFactory{
		resultTable: cfg.ResultTable,
		sqlitePath:  cfg.SQLitePath,
	}
}

// CreateResultStore opens the result table for the given backend
func (f *resultStoreFactory) CreateResultStore(kind string, lg *legend.Legend) (repository.ResultRepository, error) {
	switch kind {
	case config.StoreXLSX:
		return storage.NewXLSXResultStore(f.resultTable, lg.Pollutant(), lg.Unit()), nil
	case config.StoreSQLite:
		store, err := storage.NewSQLiteResultStore(f.sqlitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported result store: %s", kind)
	}
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	AnalyzerFactory    AnalyzerFactory
	StorageFactory     StorageFactory
	ResultStoreFactory ResultStoreFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(cfg *config.Config) *ComponentFactory {
	return &ComponentFactory{
		AnalyzerFactory:    NewAnalyzerFactory(),
		StorageFactory:     NewStorageFactory(cfg),
		ResultStoreFactory: NewResultStoreFactory(cfg),
	}
}
