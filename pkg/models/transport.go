package models

// AnalysisRequest represents a request to analyze a heatmap by URL
type AnalysisRequest struct {
	URL       string `json:"url" binding:"required,url"`
	PlaceName string `json:"place_name,omitempty"`
	Date      string `json:"date,omitempty"`
	Parallel  bool   `json:"parallel,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ResultsResponse lists stored rows
type ResultsResponse struct {
	Count   int               `json:"count"`
	Results []AggregateResult `json:"results"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Store     string `json:"store"`
}
