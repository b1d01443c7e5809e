package models

import "time"

// DateLayout is the layout of AsOfDate.
const DateLayout = "2006-01-02"

// AggregateResult is one persisted row: the average concentration of an
// image together with the place and date it is recorded under.
type AggregateResult struct {
	ID                   string    `json:"id"`
	PlaceName            string    `json:"place_name"`
	AsOfDate             string    `json:"as_of_date"`
	Pollutant            string    `json:"pollutant"`
	Unit                 string    `json:"unit"`
	AverageConcentration float64   `json:"average_concentration"`
	PixelCount           int       `json:"pixel_count,omitempty"`
	Width                int       `json:"width,omitempty"`
	Height               int       `json:"height,omitempty"`
	ImageName            string    `json:"image_name,omitempty"`
	AnnotatedImageURL    string    `json:"annotated_image_url,omitempty"`
	CreatedAt            time.Time `json:"created_at,omitempty"`
	ProcessingTimeSec    float64   `json:"processing_time_sec,omitempty"`

	// Distribution holds the pixel count per legend entry, in legend order.
	Distribution []LegendBin `json:"distribution,omitempty"`

	// Statistics holds optional summaries (median, p95, std_dev).
	Statistics map[string]float64 `json:"statistics,omitempty"`
}

// LegendBin is the share of pixels classified to one legend entry
type LegendBin struct {
	Label         string  `json:"label,omitempty"`
	Color         string  `json:"color"`
	Concentration float64 `json:"concentration"`
	Pixels        int64   `json:"pixels"`
}

// LegendEntry describes one reference color for API consumers
type LegendEntry struct {
	Label         string  `json:"label,omitempty"`
	Color         string  `json:"color"`
	RGB           [3]int  `json:"rgb"`
	Concentration float64 `json:"concentration"`
}

// LegendResponse describes the active legend
type LegendResponse struct {
	Pollutant string        `json:"pollutant"`
	Symbol    string        `json:"symbol"`
	Unit      string        `json:"unit"`
	Entries   []LegendEntry `json:"entries"`
}
