package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/heatmap-inspector/internal/analyzer"
	"github.com/anime-shed/heatmap-inspector/internal/annotate"
	apperrors "github.com/anime-shed/heatmap-inspector/internal/errors"
	"github.com/anime-shed/heatmap-inspector/internal/legend"
	"github.com/anime-shed/heatmap-inspector/internal/observer"
	"github.com/anime-shed/heatmap-inspector/internal/repository"
	"github.com/anime-shed/heatmap-inspector/internal/storage"
	"github.com/anime-shed/heatmap-inspector/internal/strategy"
	"github.com/anime-shed/heatmap-inspector/pkg/models"
	"github.com/anime-shed/heatmap-inspector/pkg/validation"
)

// UploadsRoute is the URL prefix annotated images are served under.
const UploadsRoute = "/uploads/"

// InspectRequest describes one heatmap to inspect. Exactly one of Body or URL
// must be set.
type InspectRequest struct {
	// Body and Filename carry an uploaded file
	Body     io.Reader
	Filename string

	// URL points at a remote image
	URL string

	PlaceName string
	// Date is YYYY-MM-DD; empty means today
	Date string

	// Parallel forces strip-parallel traversal for this request
	Parallel bool
}

// InspectionService converts heatmaps into stored average concentrations
type InspectionService interface {
	Inspect(ctx context.Context, req InspectRequest) (*models.AggregateResult, error)
	ListResults(ctx context.Context) ([]models.AggregateResult, error)
	Legend() *legend.Legend
}

// Dependencies groups the collaborators of the inspection service
type Dependencies struct {
	Legend    *legend.Legend
	Analyzer  analyzer.ConcentrationAnalyzer
	Images    repository.ImageRepository
	Uploads   *storage.UploadStore
	Results   repository.ResultRepository
	Annotator *annotate.Annotator
	Events    observer.Subject
	Clock     clockwork.Clock
	Logger    *logrus.Logger
}

// Settings holds the tunables of the inspection service
type Settings struct {
	AnalysisOptions analyzer.Options
	FetchTimeout    time.Duration
	AnalysisTimeout time.Duration
}

// DefaultSettings returns sequential analysis with the server's default timeouts
func DefaultSettings() Settings {
	return Settings{
		AnalysisOptions: analyzer.DefaultOptions(),
		FetchTimeout:    15 * time.Second,
		AnalysisTimeout: 20 * time.Second,
	}
}

type inspectionService struct {
	deps      Dependencies
	settings  Settings
	uploads   *validation.UploadValidator
	summaries *strategy.SummaryContext
}

// NewInspectionService creates a new inspection service
func NewInspectionService(deps Dependencies, settings Settings) (InspectionService, error) {
	if deps.Legend == nil || deps.Analyzer == nil || deps.Uploads == nil || deps.Results == nil {
		return nil, errors.New("inspection service requires a legend, analyzer, upload store and result repository")
	}
	if deps.Annotator == nil {
		deps.Annotator = annotate.NewAnnotator()
	}
	if deps.Events == nil {
		deps.Events = observer.NewSyncEventPublisher()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}

	defaults := DefaultSettings()
	if settings.FetchTimeout <= 0 {
		settings.FetchTimeout = defaults.FetchTimeout
	}
	if settings.AnalysisTimeout <= 0 {
		settings.AnalysisTimeout = defaults.AnalysisTimeout
	}

	return &inspectionService{
		deps:      deps,
		settings:  settings,
		uploads:   validation.NewUploadValidator(),
		summaries: strategy.DefaultSummaryContext(),
	}, nil
}

// Legend returns the legend every image is classified against
func (s *inspectionService) Legend() *legend.Legend {
	return s.deps.Legend
}

// ListResults returns every stored row
func (s *inspectionService) ListResults(ctx context.Context) ([]models.AggregateResult, error) {
	results, err := s.deps.Results.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read results", err)
	}
	return results, nil
}

// Inspect runs intake, analysis, annotation and persistence for one image
func (s *inspectionService) Inspect(ctx context.Context, req InspectRequest) (*models.AggregateResult, error) {
	now := s.deps.Clock.Now()

	place, err := validation.NormalizePlaceName(req.PlaceName)
	if err != nil {
		return nil, err
	}
	date, err := validation.ResolveDate(req.Date, now)
	if err != nil {
		return nil, err
	}

	var (
		img        image.Image
		source     string
		resultName string
	)
	switch {
	case req.Body != nil && req.URL != "":
		return nil, apperrors.NewValidationError("Provide either a file or a URL, not both", nil)
	case req.Body != nil:
		img, source, err = s.intakeUpload(ctx, req)
		resultName = annotate.ResultName(source)
	case req.URL != "":
		img, err = s.intakeURL(ctx, req.URL)
		source = req.URL
		resultName = annotate.ResultName(uuid.NewString() + "_" + remoteName(req.URL))
	default:
		return nil, apperrors.NewValidationError("No file selected", nil)
	}
	if err != nil {
		return nil, err
	}

	event := observer.InspectionEvent{Source: source, PlaceName: place, AsOfDate: date}
	s.publish(ctx, event, observer.AnalysisStarted, nil)

	opts := s.settings.AnalysisOptions
	if req.Parallel {
		opts = opts.WithParallel(opts.StripRows)
	}

	res, err := s.analyze(ctx, img, opts)
	if err != nil {
		event.ErrorMessage = err.Error()
		s.publish(ctx, event, observer.AnalysisFailed, nil)
		return nil, err
	}

	lg := s.deps.Legend
	result := &models.AggregateResult{
		ID:                   uuid.NewString(),
		PlaceName:            place,
		AsOfDate:             date,
		Pollutant:            lg.Pollutant(),
		Unit:                 lg.Unit(),
		AverageConcentration: res.AverageConcentration,
		PixelCount:           res.PixelCount,
		Width:                res.Width,
		Height:               res.Height,
		ImageName:            source,
		CreatedAt:            now.UTC(),
		ProcessingTimeSec:    res.ProcessingTime.Seconds(),
		Distribution:         distribution(lg, res.Counts),
	}
	if stats, err := s.summaries.ExecuteSummaries(strategy.NewHistogram(lg, res)); err == nil {
		result.Statistics = stats
	} else {
		s.deps.Logger.WithError(err).Debug("Skipping summary statistics")
	}

	event.ProcessingTime = res.ProcessingTime
	s.publish(ctx, event, observer.AnalysisCompleted, result)

	annotated := s.deps.Annotator.Annotate(img, annotate.Label(lg.Symbol(), lg.Unit(), res.AverageConcentration))
	if _, err := s.deps.Uploads.SaveImage(resultName, annotated); err != nil {
		return nil, apperrors.NewInternalError("failed to save annotated image", err)
	}
	result.AnnotatedImageURL = UploadsRoute + resultName

	if err := s.deps.Results.Append(ctx, *result); err != nil {
		event.ErrorMessage = err.Error()
		s.publish(ctx, event, observer.ResultStoreFailed, result)
		return nil, apperrors.NewInternalError("failed to append result", err)
	}
	s.publish(ctx, event, observer.ResultStored, result)

	return result, nil
}

// intakeUpload stores the upload under a unique name and decodes it.
func (s *inspectionService) intakeUpload(ctx context.Context, req InspectRequest) (image.Image, string, error) {
	safe, err := s.uploads.ValidateFilename(req.Filename)
	if err != nil {
		return nil, "", err
	}

	name := uuid.NewString() + "_" + safe
	if _, err := s.deps.Uploads.Save(name, req.Body); err != nil {
		return nil, "", apperrors.NewInternalError("failed to store upload", err)
	}
	s.publish(ctx, observer.InspectionEvent{Source: name}, observer.ImageReceived, nil)

	img, _, err := s.deps.Uploads.Open(name)
	if err != nil {
		if rmErr := s.deps.Uploads.Remove(name); rmErr != nil {
			s.deps.Logger.WithError(rmErr).WithField("upload", name).Warn("Failed to remove undecodable upload")
		}
		return nil, "", apperrors.NewValidationError("Unable to decode image", err)
	}
	return img, name, nil
}

// intakeURL fetches a remote image within the fetch timeout.
func (s *inspectionService) intakeURL(ctx context.Context, imageURL string) (image.Image, error) {
	if s.deps.Images == nil {
		return nil, apperrors.NewValidationError("URL intake is not configured", nil)
	}
	if err := s.deps.Images.ValidateImageURL(imageURL); err != nil {
		if appErr, ok := apperrors.As(err); ok {
			return nil, appErr
		}
		return nil, apperrors.NewValidationError("invalid image URL", err)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.settings.FetchTimeout)
	defer cancel()

	start := time.Now()
	img, err := s.deps.Images.FetchImage(fetchCtx, imageURL)
	event := observer.InspectionEvent{Source: imageURL, ProcessingTime: time.Since(start)}
	if err != nil {
		event.ErrorMessage = err.Error()
		s.publish(ctx, event, observer.ImageFetchFailed, nil)

		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, apperrors.NewTimeoutError("image fetch timed out", err)
		case errors.Is(err, storage.ErrUnsupportedFormat):
			return nil, apperrors.NewValidationError("Unable to decode image", err)
		case errors.Is(err, storage.ErrImageTooLarge):
			return nil, apperrors.NewValidationError("Image exceeds the size limit", err)
		default:
			return nil, apperrors.NewNetworkError("failed to fetch image", err)
		}
	}
	s.publish(ctx, event, observer.ImageFetched, nil)
	return img, nil
}

// analyze runs the analyzer, giving up after the analysis timeout. The pixel
// loop itself is not interruptible, so a timed-out run finishes in the
// background and its result is discarded.
func (s *inspectionService) analyze(ctx context.Context, img image.Image, opts analyzer.Options) (analyzer.Result, error) {
	type outcome struct {
		res analyzer.Result
		err error
	}

	analysisCtx, cancel := context.WithTimeout(ctx, s.settings.AnalysisTimeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		res, err := s.deps.Analyzer.Analyze(img, s.deps.Legend, opts)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if errors.Is(o.err, analyzer.ErrEmptyImage) || errors.Is(o.err, legend.ErrInvalidLegend) {
				return analyzer.Result{}, apperrors.NewProcessingError("image cannot be analyzed", o.err)
			}
			return analyzer.Result{}, apperrors.NewInternalError("analysis failed", o.err)
		}
		return o.res, nil
	case <-analysisCtx.Done():
		return analyzer.Result{}, apperrors.NewTimeoutError("analysis timed out", analysisCtx.Err())
	}
}

func (s *inspectionService) publish(ctx context.Context, event observer.InspectionEvent, typ observer.EventType, result *models.AggregateResult) {
	event.EventType = typ
	event.Timestamp = s.deps.Clock.Now()
	event.Result = result
	event.Success = event.ErrorMessage == ""
	s.deps.Events.NotifyObservers(ctx, event)
}

func distribution(lg *legend.Legend, counts []int64) []models.LegendBin {
	bins := make([]models.LegendBin, lg.Len())
	for i, e := range lg.Entries() {
		bins[i] = models.LegendBin{
			Label:         e.Label,
			Color:         e.Color.Hex(),
			Concentration: e.Concentration,
			Pixels:        counts[i],
		}
	}
	return bins
}

// remoteName derives a file name for the annotated copy of a remote image.
// Unsupported or missing extensions fall back to PNG.
func remoteName(rawURL string) string {
	name := "heatmap.png"
	if u, err := url.Parse(rawURL); err == nil {
		if base := validation.SanitizeFilename(path.Base(u.Path)); base != "" {
			name = base
		}
	}
	if _, err := validation.NewUploadValidator().ValidateFilename(name); err != nil {
		name = fmt.Sprintf("%s.png", name)
	}
	return name
}
