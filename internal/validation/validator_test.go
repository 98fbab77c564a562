package validation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/llm"
	"github.com/helixir/gap-analysis-service/internal/papersources"
)

type fakeAI struct {
	query    string
	queryErr error
	verdict  llm.Verdict
	err      error

	candidates []domain.Candidate
	papers     []domain.ExtractedContent
}

func (f *fakeAI) GenerateSearchQuery(_ context.Context, c domain.Candidate) (string, error) {
	f.candidates = append(f.candidates, c)
	return f.query, f.queryErr
}

func (f *fakeAI) ValidateGap(_ context.Context, _ domain.Candidate, papers []domain.ExtractedContent) (llm.Verdict, error) {
	f.papers = papers
	return f.verdict, f.err
}

type fakeSearcher struct {
	results []domain.SearchResult
	params  []papersources.SearchParams
}

func (f *fakeSearcher) Search(_ context.Context, params papersources.SearchParams) []domain.SearchResult {
	f.params = append(f.params, params)
	return f.results
}

type fakeExtractor struct {
	calls int
}

func (f *fakeExtractor) ExtractBatch(_ context.Context, papers []domain.SearchResult) []domain.ExtractedContent {
	f.calls++
	out := make([]domain.ExtractedContent, len(papers))
	for i, p := range papers {
		if p.PDFURL == "" {
			out[i] = domain.FailedExtraction(p.Title, errors.New("no PDF available"))
			continue
		}
		out[i] = domain.ExtractedContent{Title: p.Title, Abstract: "abstract of " + p.Title, Success: true}
	}
	return out
}

// fakeStore records every persisted status. failAt makes the n-th
// UpdateValidation call (1-based) fail.
type fakeStore struct {
	mu        sync.Mutex
	statuses  []domain.ValidationStatus
	last      domain.Gap
	papers    []domain.ValidationPaper
	failAt    map[int]bool
	papersErr error
}

func (s *fakeStore) UpdateValidation(_ context.Context, g *domain.Gap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, g.ValidationStatus)
	if s.failAt[len(s.statuses)] {
		return errors.New("connection reset")
	}
	s.last = *g
	return nil
}

func (s *fakeStore) CreateValidationPapers(_ context.Context, papers []domain.ValidationPaper) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.papersErr != nil {
		return s.papersErr
	}
	s.papers = append(s.papers, papers...)
	return nil
}

func newGap() *domain.Gap {
	return domain.NewGap(uuid.New(), domain.Candidate{
		Name:        "Sparse labels",
		Description: "Few labelled examples",
		Category:    "empirical",
	}, 0, time.Now())
}

func newValidator(ai AI, s Searcher, e ContentExtractor, st Store) *Validator {
	return NewValidator(ai, s, e, st, Config{}, zerolog.Nop(), nil)
}

func related(titles ...string) []domain.SearchResult {
	out := make([]domain.SearchResult, len(titles))
	for i, t := range titles {
		out[i] = domain.SearchResult{Title: t, DOI: "10.1/" + t, PDFURL: "https://pdf/" + t}
	}
	return out
}

func TestValidate_Valid(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{query: "sparse label learning", verdict: llm.Verdict{
		IsValid:          true,
		Confidence:       0.85,
		Reasoning:        "not addressed",
		SupportingPapers: []domain.PaperReference{{Title: "A"}},
	}}
	store := &fakeStore{}
	gap := newGap()

	out := newValidator(ai, &fakeSearcher{results: related("A", "B")}, &fakeExtractor{}, store).Validate(context.Background(), gap)

	require.True(t, out.IsOk())
	assert.Equal(t, domain.OutcomeOk, out.Kind)
	assert.Same(t, gap, out.Value)
	assert.Equal(t, domain.ValidationStatusValid, gap.ValidationStatus)
	assert.InDelta(t, 0.85, gap.Confidence(), 1e-9)
	assert.Equal(t, "not addressed", gap.ValidationReasoning)
	assert.Equal(t, "sparse label learning", gap.ValidationQuery)
	assert.Equal(t, 2, gap.PapersAnalyzedCount)
	assert.NotNil(t, gap.ValidatedAt)
	assert.Equal(t, []domain.PaperReference{{Title: "A"}}, gap.SupportingPapers)
	assert.Equal(t, []domain.ValidationStatus{domain.ValidationStatusValidating, domain.ValidationStatusValid}, store.statuses)

	require.Len(t, store.papers, 2)
	assert.Equal(t, gap.ID, store.papers[0].GapID)
	assert.Equal(t, domain.ExtractionStatusSuccess, store.papers[0].ExtractionStatus)
	assert.Equal(t, "abstract of A", store.papers[0].ExtractedText)
	assert.Len(t, ai.papers, 2)
}

func TestValidate_Modified(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{query: "q", verdict: llm.Verdict{
		IsValid:                true,
		Confidence:             0.6,
		ShouldModify:           true,
		ModificationSuggestion: "Few labelled examples in low-resource languages",
	}}
	gap := newGap()

	out := newValidator(ai, &fakeSearcher{results: related("A")}, &fakeExtractor{}, &fakeStore{}).Validate(context.Background(), gap)

	require.True(t, out.IsOk())
	assert.Equal(t, domain.ValidationStatusModified, gap.ValidationStatus)
	assert.Equal(t, "Few labelled examples in low-resource languages", gap.Description)
	require.Len(t, gap.ModificationHistory, 1)
	assert.Equal(t, "Few labelled examples", gap.ModificationHistory[0].Original)
	assert.Equal(t, "Few labelled examples in low-resource languages", gap.ModificationHistory[0].Suggestion)
}

func TestValidate_ModifiedWithoutSuggestion(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{query: "q", verdict: llm.Verdict{IsValid: true, Confidence: 0.6, ShouldModify: true}}
	gap := newGap()

	newValidator(ai, &fakeSearcher{results: related("A")}, &fakeExtractor{}, &fakeStore{}).Validate(context.Background(), gap)

	assert.Equal(t, domain.ValidationStatusModified, gap.ValidationStatus)
	assert.Equal(t, "Few labelled examples", gap.Description)
	assert.Len(t, gap.ModificationHistory, 1)
}

func TestValidate_Invalid(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{query: "q", verdict: llm.Verdict{
		IsValid:           false,
		Confidence:        0.9,
		Reasoning:         "solved by A",
		ConflictingPapers: []domain.PaperReference{{Title: "A", Reason: "solves it"}},
	}}
	gap := newGap()

	out := newValidator(ai, &fakeSearcher{results: related("A")}, &fakeExtractor{}, &fakeStore{}).Validate(context.Background(), gap)

	require.True(t, out.IsOk())
	assert.Equal(t, domain.ValidationStatusInvalid, gap.ValidationStatus)
	assert.False(t, gap.ValidationStatus.IsAccepted())
	assert.Len(t, gap.ConflictingPapers, 1)
}

func TestValidate_NoRelatedWork(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{query: "q"}
	extractor := &fakeExtractor{}
	store := &fakeStore{}
	gap := newGap()

	out := newValidator(ai, &fakeSearcher{}, extractor, store).Validate(context.Background(), gap)

	require.True(t, out.IsOk())
	assert.Equal(t, domain.OutcomeOk, out.Kind)
	assert.Equal(t, domain.ValidationStatusValid, gap.ValidationStatus)
	assert.Equal(t, NoRelatedWorkConfidence, gap.Confidence())
	assert.Equal(t, NoRelatedWorkReasoning, gap.ValidationReasoning)
	assert.Zero(t, gap.PapersAnalyzedCount)
	assert.Zero(t, extractor.calls)
	assert.Nil(t, ai.papers)
	assert.Empty(t, store.papers)
}

func TestValidate_QueryFallback(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{queryErr: errors.New("provider down")}
	searcher := &fakeSearcher{}
	gap := newGap()

	out := newValidator(ai, searcher, &fakeExtractor{}, &fakeStore{}).Validate(context.Background(), gap)

	require.True(t, out.IsOk())
	require.Len(t, searcher.params, 1)
	assert.Equal(t, "Sparse labels empirical", searcher.params[0].Query)
	assert.Equal(t, DefaultMaxPapers, searcher.params[0].MaxResults)
	assert.Equal(t, "Sparse labels empirical", gap.ValidationQuery)
}

func TestValidate_DeduplicatesAndCaps(t *testing.T) {
	t.Parallel()

	results := related("A", "B", "C", "D")
	results = append(results, domain.SearchResult{Title: "a", PDFURL: "https://pdf/a2"})
	ai := &fakeAI{query: "q", verdict: llm.Verdict{IsValid: true, Confidence: 0.7}}
	store := &fakeStore{}
	gap := newGap()

	v := NewValidator(ai, &fakeSearcher{results: results}, &fakeExtractor{}, store, Config{MaxPapers: 3}, zerolog.Nop(), nil)
	v.Validate(context.Background(), gap)

	assert.Equal(t, 3, gap.PapersAnalyzedCount)
	require.Len(t, store.papers, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{store.papers[0].Title, store.papers[1].Title, store.papers[2].Title})
}

func TestValidate_FailedExtractionsAreRecorded(t *testing.T) {
	t.Parallel()

	results := []domain.SearchResult{{Title: "No PDF"}, {Title: "With PDF", PDFURL: "https://pdf/x"}}
	ai := &fakeAI{query: "q", verdict: llm.Verdict{IsValid: true, Confidence: 0.7}}
	store := &fakeStore{}

	newValidator(ai, &fakeSearcher{results: results}, &fakeExtractor{}, store).Validate(context.Background(), newGap())

	require.Len(t, store.papers, 2)
	assert.Equal(t, domain.ExtractionStatusFailed, store.papers[0].ExtractionStatus)
	assert.Empty(t, store.papers[0].ExtractedText)
	assert.Equal(t, domain.ExtractionStatusSuccess, store.papers[1].ExtractionStatus)
	assert.False(t, ai.papers[0].Success, "failed extractions still reach the verdict prompt")
}

func TestValidate_FailsOpen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		ai    *fakeAI
		store *fakeStore
	}{
		{
			name:  "verdict error",
			ai:    &fakeAI{query: "q", err: errors.New("validate_gap failed after 3 attempts")},
			store: &fakeStore{},
		},
		{
			name:  "validation papers not stored",
			ai:    &fakeAI{query: "q"},
			store: &fakeStore{papersErr: errors.New("disk full")},
		},
		{
			name:  "validating status not stored",
			ai:    &fakeAI{query: "q"},
			store: &fakeStore{failAt: map[int]bool{1: true}},
		},
		{
			name:  "verdict not stored",
			ai:    &fakeAI{query: "q", verdict: llm.Verdict{IsValid: false, Confidence: 0.9}},
			store: &fakeStore{failAt: map[int]bool{2: true}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			gap := newGap()

			out := newValidator(tc.ai, &fakeSearcher{results: related("A")}, &fakeExtractor{}, tc.store).Validate(context.Background(), gap)

			require.True(t, out.IsOk())
			assert.Equal(t, domain.OutcomeDegraded, out.Kind)
			assert.NotEmpty(t, out.Reason)
			assert.Equal(t, domain.ValidationStatusValid, gap.ValidationStatus)
			assert.Equal(t, FailOpenConfidence, gap.Confidence())
			assert.Equal(t, out.Reason, gap.ValidationReasoning)
			assert.Equal(t, domain.ValidationStatusValid, tc.store.last.ValidationStatus)
			assert.Empty(t, gap.ModificationHistory)
		})
	}
}

func TestValidate_FailOpenNotStored(t *testing.T) {
	t.Parallel()

	ai := &fakeAI{query: "q", err: errors.New("boom")}
	store := &fakeStore{failAt: map[int]bool{2: true}}

	out := newValidator(ai, &fakeSearcher{results: related("A")}, &fakeExtractor{}, store).Validate(context.Background(), newGap())

	assert.False(t, out.IsOk())
	assert.Contains(t, out.Reason, "boom")
	assert.Contains(t, out.Reason, "connection reset")
}

func TestValidate_TerminalGap(t *testing.T) {
	t.Parallel()

	gap := newGap()
	require.NoError(t, gap.Transition(domain.ValidationStatusInvalid))
	store := &fakeStore{}

	out := newValidator(&fakeAI{}, &fakeSearcher{}, &fakeExtractor{}, store).Validate(context.Background(), gap)

	assert.False(t, out.IsOk())
	assert.Equal(t, domain.ValidationStatusInvalid, gap.ValidationStatus)
	assert.Empty(t, store.statuses)
}

func TestValidationPapers(t *testing.T) {
	t.Parallel()

	gapID := uuid.New()
	now := time.Now()
	rows := validationPapers(gapID, related("A", "B"), []domain.ExtractedContent{{Success: true, Abstract: "x"}}, now)

	require.Len(t, rows, 2)
	assert.NotEqual(t, rows[0].ID, rows[1].ID)
	assert.Equal(t, "10.1/A", rows[0].DOI)
	assert.Equal(t, domain.ExtractionStatusSuccess, rows[0].ExtractionStatus)
	assert.Equal(t, domain.ExtractionStatusFailed, rows[1].ExtractionStatus)
	assert.Equal(t, now, rows[1].CreatedAt)
}
