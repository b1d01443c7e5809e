package observer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/anime-shed/heatmap-inspector/pkg/models"
)

// InspectionEvent represents one step of inspecting a heatmap
type InspectionEvent struct {
	EventType      EventType               `json:"event_type"`
	Timestamp      time.Time               `json:"timestamp"`
	Source         string                  `json:"source"`
	PlaceName      string                  `json:"place_name,omitempty"`
	AsOfDate       string                  `json:"as_of_date,omitempty"`
	ProcessingTime time.Duration           `json:"processing_time"`
	Success        bool                    `json:"success"`
	ErrorMessage   string                  `json:"error_message,omitempty"`
	Result         *models.AggregateResult `json:"result,omitempty"`
	Metadata       map[string]interface{}  `json:"metadata,omitempty"`
}

// EventType represents the type of inspection event
type EventType string

const (
	// ImageReceived when an upload has been stored
	ImageReceived EventType = "image_received"
	// ImageFetched when a remote image is successfully fetched
	ImageFetched EventType = "image_fetched"
	// ImageFetchFailed when a remote image cannot be fetched
	ImageFetchFailed EventType = "image_fetch_failed"
	// AnalysisStarted when classification begins
	AnalysisStarted EventType = "analysis_started"
	// AnalysisCompleted when the average has been computed
	AnalysisCompleted EventType = "analysis_completed"
	// AnalysisFailed when classification fails
	AnalysisFailed EventType = "analysis_failed"
	// ResultStored when the row has been appended to the result table
	ResultStored EventType = "result_stored"
	// ResultStoreFailed when the row could not be appended
	ResultStoreFailed EventType = "result_store_failed"
)

// Observer defines the interface for event observers
type Observer interface {
	OnEvent(ctx context.Context, event InspectionEvent)
	GetObserverName() string
}

// Subject defines the interface for event publishers
type Subject interface {
	Subscribe(observer Observer)
	Unsubscribe(observer Observer)
	NotifyObservers(ctx context.Context, event InspectionEvent)
}

// LoggingObserver logs inspection events
type LoggingObserver struct {
	logger *logrus.Logger
}

// NewLoggingObserver creates a new logging observer
func NewLoggingObserver(logger *logrus.Logger) Observer {
	return &LoggingObserver{
		logger: logger,
	}
}

// OnEvent handles inspection events by logging them
func (o *LoggingObserver) OnEvent(ctx context.Context, event InspectionEvent) {
	fields := logrus.Fields{
		"event_type":      event.EventType,
		"source":          event.Source,
		"processing_time": event.ProcessingTime,
		"success":         event.Success,
	}
	if event.PlaceName != "" {
		fields["place_name"] = event.PlaceName
	}
	if event.AsOfDate != "" {
		fields["as_of_date"] = event.AsOfDate
	}
	if event.Result != nil {
		fields["average_concentration"] = event.Result.AverageConcentration
		fields["pixel_count"] = event.Result.PixelCount
	}
	if event.ErrorMessage != "" {
		fields["error"] = event.ErrorMessage
	}
	for k, v := range event.Metadata {
		fields[k] = v
	}

	entry := o.logger.WithFields(fields)
	switch event.EventType {
	case AnalysisStarted:
		entry.Debug("Heatmap analysis started")
	case AnalysisCompleted:
		entry.Info("Heatmap analysis completed")
	case AnalysisFailed:
		entry.Error("Heatmap analysis failed")
	case ImageReceived:
		entry.Debug("Heatmap upload stored")
	case ImageFetched:
		entry.Debug("Heatmap fetched successfully")
	case ImageFetchFailed:
		entry.Error("Heatmap fetch failed")
	case ResultStored:
		entry.Info("Result appended")
	case ResultStoreFailed:
		entry.Error("Result append failed")
	default:
		entry.Info("Inspection event occurred")
	}
}

// GetObserverName returns the observer name
func (o *LoggingObserver) GetObserverName() string {
	return "logging_observer"
}

// EventPublisher implements the Subject interface
type EventPublisher struct {
	mu        sync.RWMutex
	observers []Observer
	async     bool
	wg        sync.WaitGroup
}

// NewEventPublisher creates a publisher that notifies observers concurrently
func NewEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
		async:     true,
	}
}

// NewSyncEventPublisher creates a publisher that notifies observers in
// subscription order before NotifyObservers returns
func NewSyncEventPublisher() *EventPublisher {
	return &EventPublisher{
		observers: make([]Observer, 0),
	}
}

// Subscribe adds an observer
func (p *EventPublisher) Subscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, observer)
}

// Unsubscribe removes an observer
func (p *EventPublisher) Unsubscribe(observer Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, obs := range p.observers {
		if obs.GetObserverName() == observer.GetObserverName() {
			p.observers = append(p.observers[:i], p.observers[i+1:]...)
			break
		}
	}
}

// NotifyObservers notifies all observers of an event
func (p *EventPublisher) NotifyObservers(ctx context.Context, event InspectionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, observer := range observers {
		if !p.async {
			notify(ctx, observer, event)
			continue
		}
		p.wg.Add(1)
		go func(obs Observer) {
			defer p.wg.Done()
			notify(ctx, obs, event)
		}(observer)
	}
}

// Wait blocks until every in-flight asynchronous notification has finished
func (p *EventPublisher) Wait() {
	p.wg.Wait()
}

func notify(ctx context.Context, obs Observer, event InspectionEvent) {
	defer func() {
		if r := recover(); r != nil {
			// Log panic but don't crash the application
			logrus.WithField("observer", obs.GetObserverName()).
				WithField("panic", r).
				Error("Observer panicked while handling event")
		}
	}()
	obs.OnEvent(ctx, event)
}
