package container

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/anime-shed/heatmap-inspector/internal/analyzer"
	"github.com/anime-shed/heatmap-inspector/internal/config"
	"github.com/anime-shed/heatmap-inspector/internal/factory"
	"github.com/anime-shed/heatmap-inspector/internal/legend"
	"github.com/anime-shed/heatmap-inspector/internal/logger"
	"github.com/anime-shed/heatmap-inspector/internal/observer"
	"github.com/anime-shed/heatmap-inspector/internal/repository"
	"github.com/anime-shed/heatmap-inspector/internal/service"
	"github.com/anime-shed/heatmap-inspector/internal/storage"
	"github.com/anime-shed/heatmap-inspector/internal/transport"
	"github.com/anime-shed/heatmap-inspector/pkg/validation"
)

// Option customizes how the container is built
type Option func(*options)

type options struct {
	syncEvents bool
	registry   *prometheus.Registry
}

// WithSyncEvents delivers events before Inspect returns, for short-lived
// processes such as the CLI
func WithSyncEvents() Option {
	return func(o *options) {
		o.syncEvents = true
	}
}

// WithMetricsRegistry registers metrics with reg instead of the default registry
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	legend          *legend.Legend
	analyzer        analyzer.ConcentrationAnalyzer
	imageRepository repository.ImageRepository
	uploads         *storage.UploadStore
	results         repository.ResultRepository
	publisher       *observer.EventPublisher
	kafka           *observer.KafkaObserver
	service         service.InspectionService
	handler         http.Handler
}

// NewContainer creates a new dependency injection container from the environment
func NewContainer(opts ...Option) (*Container, error) {
	// Load configuration
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewContainerWithConfig(cfg, opts...)
}

// NewContainerWithConfig builds the dependency graph for cfg
func NewContainerWithConfig(cfg *config.Config, opts ...Option) (*Container, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	lg, err := legend.Resolve(cfg.LegendFile, cfg.LegendPreset)
	if err != nil {
		return nil, fmt.Errorf("failed to load legend: %w", err)
	}

	components := factory.NewComponentFactory(cfg)

	fetcher, err := components.StorageFactory.CreateStorage(factory.RoutingStorage)
	if err != nil {
		return nil, fmt.Errorf("failed to create image fetcher: %w", err)
	}

	uploads, err := storage.NewUploadStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	results, err := components.ResultStoreFactory.CreateResultStore(cfg.ResultStore, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}

	c := &Container{
		config:          cfg,
		legend:          lg,
		analyzer:        components.AnalyzerFactory.CreateAnalyzer(cfg.AnalysisWorkers),
		imageRepository: repository.NewFetcherImageRepository(fetcher, validation.NewURLValidator()),
		uploads:         uploads,
		results:         results,
	}

	if o.syncEvents {
		c.publisher = observer.NewSyncEventPublisher()
	} else {
		c.publisher = observer.NewEventPublisher()
	}
	c.publisher.Subscribe(observer.NewLoggingObserver(logger.Logger))

	var handlerOpts []transport.HandlerOption
	if cfg.MetricsEnabled {
		var metrics *observer.Metrics
		if o.registry != nil {
			metrics = observer.NewMetricsWithRegistry(o.registry)
			handlerOpts = append(handlerOpts, transport.WithMetricsGatherer(o.registry))
		} else {
			metrics = observer.NewMetrics()
		}
		c.publisher.Subscribe(observer.NewMetricsObserver(metrics))
	}
	if cfg.KafkaEnabled() {
		c.kafka = observer.NewKafkaObserver(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Logger)
		c.publisher.Subscribe(c.kafka)
	}

	analysisOptions := analyzer.DefaultOptions()
	if cfg.ParallelAnalysis {
		analysisOptions = analysisOptions.WithParallel(cfg.StripRows)
	} else if cfg.StripRows > 0 {
		analysisOptions.StripRows = cfg.StripRows
	}

	c.service, err = service.NewInspectionService(service.Dependencies{
		Legend:   lg,
		Analyzer: c.analyzer,
		Images:   c.imageRepository,
		Uploads:  uploads,
		Results:  results,
		Events:   c.publisher,
		Logger:   logger.Logger,
	}, service.Settings{
		AnalysisOptions: analysisOptions,
		FetchTimeout:    cfg.ImageFetchTimeout,
		AnalysisTimeout: cfg.AnalysisTimeout,
	})
	if err != nil {
		c.Close()
		return nil, err
	}

	c.handler = transport.NewHandler(c.service, uploads, cfg, handlerOpts...)
	return c, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Service returns the inspection service
func (c *Container) Service() service.InspectionService {
	return c.service
}

// Legend returns the active legend
func (c *Container) Legend() *legend.Legend {
	return c.legend
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close waits for pending events and releases the stores and worker pool
func (c *Container) Close() error {
	if c.publisher != nil {
		c.publisher.Wait()
	}

	var errs []error
	if c.kafka != nil {
		if err := c.kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka: %w", err))
		}
	}
	if err := c.results.Close(); err != nil {
		errs = append(errs, fmt.Errorf("result store: %w", err))
	}
	if err := c.analyzer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("analyzer: %w", err))
	}
	return errors.Join(errs...)
}
