package api

// Content types produced by the overlay API.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypePNG  = "image/png"
)

// TrendHeader carries the trend category on /api/current/trend responses.
const TrendHeader = "X-Glucose-Trend"

// NoReading is the body of /api/current when the provider has no current data.
const NoReading = "--"
