package domain

// ImageryDescriptor identifies one static satellite image. The URL is a pure
// function of (coords, zoom, size), which is what makes it a valid cache key.
type ImageryDescriptor struct {
	URL    string
	Zoom   int
	Width  int
	Height int
}

// LeadRecord is a ranked pipeline output: one candidate property with its
// imagery, vision verdict and heuristic score.
type LeadRecord struct {
	Property       PropertyRecord
	Imagery        ImageryDescriptor
	Classification ClassificationResult
	Score          float64
}
