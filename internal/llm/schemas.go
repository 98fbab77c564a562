package llm

import (
	"strings"

	"github.com/helixir/gap-analysis-service/internal/domain"
)

const (
	// MaxTopics caps the suggested topics kept from an expansion.
	MaxTopics = 5

	// DefaultVerdictConfidence is used when a verdict omits its confidence.
	DefaultVerdictConfidence = 0.5

	// DefaultTopicRelevance is used when a topic omits its relevance score.
	DefaultTopicRelevance = 0.5
)

// Verdict is the decoded answer of the gap validation prompt.
type Verdict struct {
	IsValid                bool
	Confidence             float64
	Reasoning              string
	ShouldModify           bool
	ModificationSuggestion string
	SupportingPapers       []domain.PaperReference
	ConflictingPapers      []domain.PaperReference
}

// ParseCandidates decodes the gap generation answer. Entries without a name
// are skipped. It reports false when no JSON array could be found.
func ParseCandidates(text string) ([]domain.Candidate, bool) {
	arr, ok := decodeArray(text)
	if !ok {
		return nil, false
	}

	candidates := make([]domain.Candidate, 0, len(arr))
	for _, e := range arr {
		m, isObj := e.(map[string]any)
		if !isObj {
			continue
		}
		c := domain.Candidate{
			Name:        stringValue(m["name"]),
			Description: stringValue(m["description"]),
			Category:    strings.ToLower(stringValue(m["category"])),
			Reasoning:   stringValue(m["reasoning"]),
			Evidence:    stringValue(m["evidence"]),
		}
		if c.Name == "" {
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, true
}

// ParseVerdict decodes the validation answer, applying a default to every
// missing field: valid, confidence 0.5, no modification, no papers.
// Confidence is clamped into [0, 1]. It reports false when no JSON object
// could be found.
func ParseVerdict(text string) (Verdict, bool) {
	m, ok := decodeObject(text)
	if !ok {
		return Verdict{}, false
	}

	v := Verdict{
		IsValid:                boolOr(m, "is_valid", true),
		Confidence:             clamp01(floatOr(m, "confidence", DefaultVerdictConfidence)),
		Reasoning:              stringValue(m["reasoning"]),
		ShouldModify:           boolOr(m, "should_modify", false),
		ModificationSuggestion: stringValue(m["modification_suggestion"]),
		SupportingPapers:       paperRefs(m["supporting_papers"]),
		ConflictingPapers:      paperRefs(m["conflicting_papers"]),
	}
	// Models write the JSON null literal as a string now and then.
	if strings.EqualFold(v.ModificationSuggestion, "null") || strings.EqualFold(v.ModificationSuggestion, "none") {
		v.ModificationSuggestion = ""
	}
	return v, true
}

// ParseExpansion decodes the expansion answer. Missing text fields take the
// corresponding "unable to generate" placeholder; topics without a title are
// skipped and at most MaxTopics are kept. It reports false when no JSON
// object could be found.
func ParseExpansion(text string) (domain.Expansion, bool) {
	m, ok := decodeObject(text)
	if !ok {
		return domain.Expansion{}, false
	}

	def := domain.UnavailableExpansion()
	e := domain.Expansion{
		PotentialImpact:           stringOr(m, "potential_impact", def.PotentialImpact),
		ResearchHints:             stringOr(m, "research_hints", def.ResearchHints),
		ImplementationSuggestions: stringOr(m, "implementation_suggestions", def.ImplementationSuggestions),
		RisksAndChallenges:        stringOr(m, "risks_and_challenges", def.RisksAndChallenges),
		RequiredResources:         stringOr(m, "required_resources", def.RequiredResources),
		EstimatedDifficulty:       stringOr(m, "estimated_difficulty", def.EstimatedDifficulty),
		EstimatedTimeline:         stringOr(m, "estimated_timeline", def.EstimatedTimeline),
		Topics:                    []domain.Topic{},
	}

	for _, t := range objects(m["suggested_topics"]) {
		if len(e.Topics) == MaxTopics {
			break
		}
		title := stringValue(t["title"])
		if title == "" {
			continue
		}
		e.Topics = append(e.Topics, domain.Topic{
			Title:             title,
			Description:       stringValue(t["description"]),
			ResearchQuestions: stringSlice(t, "research_questions"),
			Methodology:       stringValue(t["methodology_suggestions"]),
			ExpectedOutcomes:  stringValue(t["expected_outcomes"]),
			RelevanceScore:    clamp01(floatOr(t, "relevance_score", DefaultTopicRelevance)),
		})
	}
	return e, true
}

// ParseQuery cleans a search query answer: code fences, surrounding quotes
// and any lines after the first non-empty one are dropped.
func ParseQuery(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		return strings.TrimSpace(strings.Trim(line, "\"'`"))
	}
	return ""
}

// paperRefs accepts a list of {title, reason, url} objects or plain titles.
func paperRefs(v any) []domain.PaperReference {
	arr, ok := v.([]any)
	if !ok {
		return []domain.PaperReference{}
	}
	refs := make([]domain.PaperReference, 0, len(arr))
	for _, e := range arr {
		switch t := e.(type) {
		case map[string]any:
			if title := stringValue(t["title"]); title != "" {
				refs = append(refs, domain.PaperReference{
					Title:  title,
					Reason: stringValue(t["reason"]),
					URL:    stringValue(t["url"]),
				})
			}
		case string:
			if title := strings.TrimSpace(t); title != "" {
				refs = append(refs, domain.PaperReference{Title: title})
			}
		}
	}
	return refs
}
