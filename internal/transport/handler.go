package transport

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/heatmap-inspector/internal/config"
	apperrors "github.com/anime-shed/heatmap-inspector/internal/errors"
	"github.com/anime-shed/heatmap-inspector/internal/legend"
	"github.com/anime-shed/heatmap-inspector/internal/logger"
	"github.com/anime-shed/heatmap-inspector/internal/service"
	"github.com/anime-shed/heatmap-inspector/internal/storage"
	"github.com/anime-shed/heatmap-inspector/pkg/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// HandlerOption customizes the router
type HandlerOption func(*handlerOptions)

type handlerOptions struct {
	gatherer prometheus.Gatherer
}

// WithMetricsGatherer exposes the given registry on /metrics instead of the
// default one
func WithMetricsGatherer(g prometheus.Gatherer) HandlerOption {
	return func(o *handlerOptions) {
		o.gatherer = g
	}
}

type handler struct {
	svc     service.InspectionService
	uploads *storage.UploadStore
	cfg     *config.Config
}

func NewHandler(svc service.InspectionService, uploads *storage.UploadStore, cfg *config.Config, opts ...HandlerOption) http.Handler {
	options := &handlerOptions{gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(options)
	}

	h := &handler{svc: svc, uploads: uploads, cfg: cfg}

	r := gin.Default()
	r.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	// Add middleware
	r.Use(
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/", h.index)
	r.POST("/upload", h.upload)
	r.POST("/analyze", h.analyzeURL)
	r.GET("/results", h.results)
	r.GET("/uploads/:filename", h.uploadedFile)
	r.GET("/legend", h.legend)
	r.GET("/health", h.healthCheck)
	if cfg.MetricsEnabled {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(options.gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

type indexPage struct {
	Legend models.LegendResponse
	Error  string
}

type resultPage struct {
	Symbol string
	Result *models.AggregateResult
}

func (h *handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", indexPage{Legend: legendResponse(h.svc.Legend())})
}

func (h *handler) upload(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info("Processing heatmap upload")

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.failUpload(c, uploadError(err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.failUpload(c, apperrors.NewInternalError("failed to read upload", err))
		return
	}
	defer file.Close()

	result, err := h.svc.Inspect(ctx, service.InspectRequest{
		Body:      file,
		Filename:  fileHeader.Filename,
		PlaceName: c.PostForm("place_name"),
		Date:      c.PostForm("date"),
		Parallel:  formBool(c.PostForm("parallel")),
	})
	if err != nil {
		h.failUpload(c, err)
		return
	}

	logResult(result)

	if wantsJSON(c) {
		c.JSON(http.StatusOK, result)
		return
	}
	c.HTML(http.StatusOK, "result.html", resultPage{Symbol: h.svc.Legend().Symbol(), Result: result})
}

func (h *handler) analyzeURL(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"user_agent": c.Request.UserAgent(),
		"ip":         c.ClientIP(),
	}).Info("Processing heatmap analysis request")

	var req models.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	if parallel := c.Query("parallel"); parallel != "" {
		req.Parallel = formBool(parallel)
	}

	result, err := h.svc.Inspect(ctx, service.InspectRequest{
		URL:       req.URL,
		PlaceName: req.PlaceName,
		Date:      req.Date,
		Parallel:  req.Parallel,
	})
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "heatmap analysis failed", err)
		return
	}

	logResult(result)
	c.JSON(http.StatusOK, result)
}

func (h *handler) results(c *gin.Context) {
	results, err := h.svc.ListResults(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to list results", err)
		return
	}
	c.JSON(http.StatusOK, models.ResultsResponse{Count: len(results), Results: results})
}

func (h *handler) uploadedFile(c *gin.Context) {
	path, err := h.uploads.Path(c.Param("filename"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid file name", err)
		return
	}
	c.File(path)
}

func (h *handler) legend(c *gin.Context) {
	c.JSON(http.StatusOK, legendResponse(h.svc.Legend()))
}

func (h *handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "available",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Store:     h.cfg.ResultStore,
	})
}

// failUpload answers a failed form upload with the form page, or JSON for API
// clients.
func (h *handler) failUpload(c *gin.Context, err error) {
	code := apperrors.GetStatusCode(err)
	if wantsJSON(c) {
		respondError(c, code, "heatmap upload failed", err)
		return
	}

	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"path":        c.Request.URL.Path,
		"ip":          c.ClientIP(),
	}).Error("Upload failed")

	message := err.Error()
	if appErr, ok := apperrors.As(err); ok {
		message = appErr.Message
	}
	c.HTML(code, "index.html", indexPage{Legend: legendResponse(h.svc.Legend()), Error: message})
	c.Abort()
}

func uploadError(err error) error {
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return apperrors.NewValidationError("No file selected", err)
	case errors.As(err, &maxErr):
		return &apperrors.AppError{
			Type:       apperrors.ErrorTypeValidation,
			Message:    fmt.Sprintf("File exceeds %d bytes", maxErr.Limit),
			StatusCode: http.StatusRequestEntityTooLarge,
			Cause:      err,
		}
	default:
		return apperrors.NewValidationError("Invalid upload", err)
	}
}

func legendResponse(lg *legend.Legend) models.LegendResponse {
	resp := models.LegendResponse{
		Pollutant: lg.Pollutant(),
		Symbol:    lg.Symbol(),
		Unit:      lg.Unit(),
		Entries:   make([]models.LegendEntry, 0, lg.Len()),
	}
	for _, e := range lg.Entries() {
		resp.Entries = append(resp.Entries, models.LegendEntry{
			Label:         e.Label,
			Color:         e.Color.Hex(),
			RGB:           [3]int{e.Color.R, e.Color.G, e.Color.B},
			Concentration: e.Concentration,
		})
	}
	return resp
}

func logResult(result *models.AggregateResult) {
	logger.WithFields(logrus.Fields{
		"id":                    result.ID,
		"place_name":            result.PlaceName,
		"as_of_date":            result.AsOfDate,
		"average_concentration": result.AverageConcentration,
		"pixel_count":           result.PixelCount,
		"processing_time_sec":   result.ProcessingTimeSec,
	}).Info("Heatmap analysis completed successfully")
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

func formBool(v string) bool {
	if v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := apperrors.As(err); ok {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
