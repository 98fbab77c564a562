package domain

import "time"

// Paper is the source paper a gap analysis is run against.
type Paper struct {
	ID              string
	Title           string
	Abstract        string
	DOI             string
	PublicationDate *time.Time
}

// Extraction is the structured full text previously extracted from a paper.
// Sections, figures and tables are ordered by their stored order index.
type Extraction struct {
	ID         string
	Sections   []ExtractedSection
	Figures    []Caption
	Tables     []Caption
	Conclusion string
}

// ExtractedSection is a titled section with ordered paragraph texts.
type ExtractedSection struct {
	ID         string
	Title      string
	Type       string
	Paragraphs []string
}

// Caption is the caption and label of an extracted figure or table.
type Caption struct {
	Label   string
	Caption string
}

// SearchResult is one paper returned by a search provider.
type SearchResult struct {
	Title           string     `json:"title"`
	Abstract        string     `json:"abstract,omitempty"`
	DOI             string     `json:"doi,omitempty"`
	URL             string     `json:"url,omitempty"`
	PDFURL          string     `json:"pdf_url,omitempty"`
	PublicationDate string     `json:"publication_date,omitempty"`
	Authors         []string   `json:"authors"`
	Venue           string     `json:"venue,omitempty"`
	Source          SourceType `json:"source"`
}

// ContentSection is a section of an extracted related paper.
type ContentSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ExtractedContent is the outcome of extracting the text of a related paper.
// Success is false for placeholders produced when extraction was skipped or failed.
type ExtractedContent struct {
	Title      string           `json:"title"`
	Abstract   string           `json:"abstract,omitempty"`
	Sections   []ContentSection `json:"sections"`
	Methods    string           `json:"methods,omitempty"`
	Results    string           `json:"results,omitempty"`
	Conclusion string           `json:"conclusion,omitempty"`
	Success    bool             `json:"success"`
	Error      string           `json:"error,omitempty"`
}

// FailedExtraction returns a placeholder for a related paper whose extraction failed.
func FailedExtraction(title string, err error) ExtractedContent {
	return ExtractedContent{Title: title, Success: false, Error: err.Error()}
}
