// Package crossref provides a client for the CrossRef REST API works search.
//
// API Documentation: https://api.crossref.org/swagger-ui/index.html
package crossref

// WorksResponse represents the envelope returned by the /works endpoint.
type WorksResponse struct {
	Status  string       `json:"status"`
	Message WorksMessage `json:"message"`
}

// WorksMessage contains the page of works.
type WorksMessage struct {
	TotalResults int    `json:"total-results"`
	Items        []Work `json:"items"`
}

// Work represents a single CrossRef work record restricted to the selected fields.
type Work struct {
	DOI            string    `json:"DOI"`
	Title          []string  `json:"title"`
	Abstract       string    `json:"abstract"`
	URL            string    `json:"URL"`
	PublishedPrint *DateInfo `json:"published-print,omitempty"`
	Author         []Author  `json:"author"`
	ContainerTitle []string  `json:"container-title"`
}

// DateInfo holds a CrossRef partial date as nested date parts, e.g. [[2021, 3, 14]].
type DateInfo struct {
	DateParts [][]int `json:"date-parts"`
}

// Author represents a CrossRef contributor.
type Author struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}
