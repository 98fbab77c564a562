package llm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

// Limits applied when a paper or its related work is put into a prompt.
const (
	maxContextSections      = 10
	maxParagraphsPerSection = 3
	maxSectionChars         = 1000
	maxConclusionChars      = 1000
	maxCaptions             = 5

	maxValidationPapers     = 10
	maxValidationFieldChars = 500
)

const systemPrompt = "You are an expert research analyst who reviews academic papers, " +
	"identifies open research gaps and judges whether newer literature has closed them. " +
	"Be critical, specific and grounded in the provided text."

// BuildGapPrompt asks for 5-10 research gaps in the given paper.
func BuildGapPrompt(paper *domain.Paper, extraction *domain.Extraction) (system, user string) {
	var sb strings.Builder

	sb.WriteString("Analyze the following academic paper and identify its research gaps.\n\n")
	sb.WriteString(PaperContext(paper, extraction))
	sb.WriteString("\n\nIdentify 5-10 significant research gaps. For each gap provide:\n")
	sb.WriteString("1. name: a concise name (at most 100 characters)\n")
	sb.WriteString("2. description: a detailed description of the gap\n")
	sb.WriteString("3. category: one of theoretical, methodological, empirical, application, interdisciplinary\n")
	sb.WriteString("4. reasoning: why this is a gap\n")
	sb.WriteString("5. evidence: evidence from the paper supporting the gap\n\n")
	sb.WriteString("Look for limitations stated by the authors, suggested future work, unexplored methods, ")
	sb.WriteString("missing comparisons, scalability or generalization issues, untested assumptions ")
	sb.WriteString("and interdisciplinary opportunities.\n\n")
	sb.WriteString("Respond ONLY with a JSON array of objects with the keys ")
	sb.WriteString(`"name", "description", "category", "reasoning", "evidence".`)

	return systemPrompt, sb.String()
}

// BuildQueryPrompt asks for one academic search query that would find work
// addressing the candidate gap.
func BuildQueryPrompt(c domain.Candidate) (system, user string) {
	var sb strings.Builder

	sb.WriteString("Write an academic search query that finds papers which may already address this research gap.\n\n")
	fmt.Fprintf(&sb, "Gap Name: %s\nDescription: %s\nCategory: %s\n\n", c.Name, c.Description, c.Category)
	sb.WriteString("The query should target direct solutions, related work, similar methods and recent advances. ")
	sb.WriteString("Use the key technical terms of the field and keep it suitable for academic search engines.\n\n")
	sb.WriteString("Return ONLY the query string on a single line, nothing else.")

	return systemPrompt, sb.String()
}

// BuildValidationPrompt asks whether the candidate gap still holds given the
// related papers found for it.
func BuildValidationPrompt(c domain.Candidate, papers []domain.ExtractedContent) (system, user string) {
	var sb strings.Builder

	sb.WriteString("Decide whether the following research gap is still open given recent papers.\n\n")
	sb.WriteString("RESEARCH GAP:\n")
	fmt.Fprintf(&sb, "Name: %s\nDescription: %s\nCategory: %s\nReasoning: %s\n\n", c.Name, c.Description, c.Category, c.Reasoning)
	sb.WriteString("RELATED PAPERS ANALYZED:")
	sb.WriteString(ValidationContext(papers))
	sb.WriteString("\n\nJudge whether the gap has been fully addressed, partially addressed, ")
	sb.WriteString("remains unaddressed, or should be reworded in light of these papers. ")
	sb.WriteString("A gap is only invalid if it has been comprehensively addressed.\n\n")
	sb.WriteString("Respond ONLY with a JSON object of this shape:\n")
	sb.WriteString(`{"is_valid": true, "confidence": 0.0, "reasoning": "...", "should_modify": false, `)
	sb.WriteString(`"modification_suggestion": null, `)
	sb.WriteString(`"supporting_papers": [{"title": "...", "reason": "..."}], `)
	sb.WriteString(`"conflicting_papers": [{"title": "...", "reason": "..."}]}`)
	sb.WriteString("\nconfidence is a number between 0 and 1.")

	return systemPrompt, sb.String()
}

// BuildExpansionPrompt asks for actionable detail and 3-5 research topics for
// an accepted gap.
func BuildExpansionPrompt(c domain.Candidate, confidence float64) (system, user string) {
	var sb strings.Builder

	sb.WriteString("Provide comprehensive details about this validated research gap.\n\n")
	sb.WriteString("GAP INFORMATION:\n")
	fmt.Fprintf(&sb, "Name: %s\nDescription: %s\nCategory: %s\nValidation Confidence: %s\n\n",
		c.Name, c.Description, c.Category, strconv.FormatFloat(confidence, 'f', -1, 64))
	sb.WriteString("Respond ONLY with a JSON object with these keys:\n")
	sb.WriteString("- potential_impact: scientific and practical impact\n")
	sb.WriteString("- research_hints: concrete directions for researchers\n")
	sb.WriteString("- implementation_suggestions: steps to address the gap\n")
	sb.WriteString("- risks_and_challenges: expected risks and challenges\n")
	sb.WriteString("- required_resources: expertise, equipment and data needed\n")
	sb.WriteString("- estimated_difficulty: low, medium or high with a justification\n")
	sb.WriteString("- estimated_timeline: a realistic timeline with milestones\n")
	sb.WriteString("- suggested_topics: 3-5 objects with title, description, research_questions (array of strings), ")
	sb.WriteString("methodology_suggestions, expected_outcomes and relevance_score (0 to 1)\n\n")
	sb.WriteString("Be specific, practical and actionable.")

	return systemPrompt, sb.String()
}

// PaperContext renders the source paper for the gap generation prompt: title,
// abstract, up to 10 titled sections (first 3 paragraphs, 1000 characters
// each), the conclusion (1000 characters) and up to 5 figure and 5 table
// captions.
func PaperContext(paper *domain.Paper, extraction *domain.Extraction) string {
	title, abstract := "N/A", "N/A"
	if paper != nil {
		if paper.Title != "" {
			title = paper.Title
		}
		if paper.Abstract != "" {
			abstract = paper.Abstract
		}
	}

	parts := []string{"Title: " + title, "Abstract: " + abstract}
	if extraction == nil {
		return strings.Join(parts, "\n")
	}

	if len(extraction.Sections) > 0 {
		parts = append(parts, "\nKEY SECTIONS:")
		for _, s := range extraction.Sections[:min(len(extraction.Sections), maxContextSections)] {
			if s.Title == "" {
				continue
			}
			parts = append(parts, "\n"+s.Title+":")
			if len(s.Paragraphs) > 0 {
				text := strings.Join(s.Paragraphs[:min(len(s.Paragraphs), maxParagraphsPerSection)], " ")
				parts = append(parts, truncate(text, maxSectionChars))
			}
		}
	}

	if extraction.Conclusion != "" {
		parts = append(parts, "\nCONCLUSION:\n"+truncate(extraction.Conclusion, maxConclusionChars))
	}

	parts = appendCaptions(parts, "\nFIGURE CAPTIONS:", extraction.Figures)
	parts = appendCaptions(parts, "\nTABLE CAPTIONS:", extraction.Tables)

	return strings.Join(parts, "\n")
}

func appendCaptions(parts []string, heading string, captions []domain.Caption) []string {
	if len(captions) == 0 {
		return parts
	}
	parts = append(parts, heading)
	for _, c := range captions[:min(len(captions), maxCaptions)] {
		if c.Caption != "" {
			parts = append(parts, "- "+c.Caption)
		}
	}
	return parts
}

// ValidationContext renders up to 10 related papers, each field cut to 500
// characters.
func ValidationContext(papers []domain.ExtractedContent) string {
	var parts []string
	for i, p := range papers[:min(len(papers), maxValidationPapers)] {
		parts = append(parts, fmt.Sprintf("\nPAPER %d:", i+1), "Title: "+p.Title)
		for _, f := range []struct{ label, text string }{
			{"Abstract", p.Abstract},
			{"Methods", p.Methods},
			{"Results", p.Results},
			{"Conclusion", p.Conclusion},
		} {
			if f.text != "" {
				parts = append(parts, f.label+": "+truncate(f.text, maxValidationFieldChars))
			}
		}
	}
	return strings.Join(parts, "\n")
}

// truncate cuts s to at most n characters without splitting a rune.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
