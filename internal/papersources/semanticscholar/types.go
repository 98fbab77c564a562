// Package semanticscholar provides a client for the Semantic Scholar Graph API.
//
// API Documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// SearchResponse represents the response from the paper search endpoint.
type SearchResponse struct {
	// Total is the total number of papers matching the query.
	Total int `json:"total"`

	// Offset is the current offset in the result set.
	Offset int `json:"offset"`

	// Next is the offset for the next page of results.
	Next int `json:"next"`

	// Data contains the papers returned by the search.
	Data []PaperResult `json:"data"`
}

// PaperResult represents a single paper in the search response.
type PaperResult struct {
	PaperID       string         `json:"paperId"`
	Title         string         `json:"title"`
	Abstract      string         `json:"abstract"`
	URL           string         `json:"url"`
	Venue         string         `json:"venue"`
	Year          int            `json:"year"`
	Authors       []Author       `json:"authors"`
	IsOpenAccess  bool           `json:"isOpenAccess"`
	OpenAccessPDF *OpenAccessPDF `json:"openAccessPdf,omitempty"`
}

// Author represents a paper author.
type Author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// OpenAccessPDF contains information about an open access PDF.
type OpenAccessPDF struct {
	// URL is the direct URL to the PDF.
	URL string `json:"url,omitempty"`

	// Status indicates the open access status (e.g., "GOLD", "GREEN").
	Status string `json:"status,omitempty"`
}
