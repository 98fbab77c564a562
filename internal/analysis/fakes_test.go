package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/gap-analysis-service/internal/domain"
	"github.com/helixir/gap-analysis-service/internal/llm"
	"github.com/helixir/gap-analysis-service/internal/papersources"
)

type fakeAI struct {
	mu sync.Mutex

	candidates    []domain.Candidate
	candidatesErr error
	gotExtraction *domain.Extraction

	verdicts  map[string]llm.Verdict
	panicOn   string
	expandErr error
}

func (f *fakeAI) GenerateCandidates(_ context.Context, _ *domain.Paper, extraction *domain.Extraction) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotExtraction = extraction
	return f.candidates, f.candidatesErr
}

func (f *fakeAI) GenerateSearchQuery(_ context.Context, c domain.Candidate) (string, error) {
	if c.Name == f.panicOn {
		panic("query generator exploded")
	}
	return "query " + c.Name, nil
}

func (f *fakeAI) ValidateGap(_ context.Context, c domain.Candidate, _ []domain.ExtractedContent) (llm.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.verdicts[c.Name]; ok {
		return v, nil
	}
	return llm.Verdict{
		IsValid:          true,
		Confidence:       0.8,
		Reasoning:        "still open",
		SupportingPapers: []domain.PaperReference{{Title: "related to " + c.Name}},
	}, nil
}

func (f *fakeAI) ExpandGap(_ context.Context, c domain.Candidate, _ float64) (domain.Expansion, error) {
	if f.expandErr != nil {
		return domain.Expansion{}, f.expandErr
	}
	return domain.Expansion{
		PotentialImpact:     "impact of " + c.Name,
		EstimatedDifficulty: "medium",
		Topics: []domain.Topic{
			{Title: c.Name + " topic", ResearchQuestions: []string{"why?"}, RelevanceScore: 0.7},
		},
	}, nil
}

type fakeSession struct {
	closed atomic.Int32
}

func (s *fakeSession) Search(_ context.Context, params papersources.SearchParams) []domain.SearchResult {
	return []domain.SearchResult{{Title: "related to " + params.Query, PDFURL: "https://pdf/" + params.Query}}
}

func (s *fakeSession) ExtractBatch(_ context.Context, papers []domain.SearchResult) []domain.ExtractedContent {
	out := make([]domain.ExtractedContent, len(papers))
	for i, p := range papers {
		out[i] = domain.ExtractedContent{Title: p.Title, Abstract: "abstract", Success: true}
	}
	return out
}

func (s *fakeSession) Close() { s.closed.Add(1) }

func (s *fakeSession) factory() SessionFactory {
	return func(zerolog.Logger) (Session, error) { return s, nil }
}

type fakeAnalyses struct {
	mu        sync.Mutex
	runs      map[uuid.UUID]domain.Analysis
	createErr error
	finishErr []error
	finishes  int
}

func newFakeAnalyses() *fakeAnalyses {
	return &fakeAnalyses{runs: make(map[uuid.UUID]domain.Analysis)}
}

func (f *fakeAnalyses) Create(_ context.Context, a *domain.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.runs[a.ID] = *a
	return nil
}

func (f *fakeAnalyses) Finish(_ context.Context, a *domain.Analysis) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishes++
	if len(f.finishErr) > 0 {
		err := f.finishErr[0]
		f.finishErr = f.finishErr[1:]
		if err != nil {
			return err
		}
	}
	stored, ok := f.runs[a.ID]
	if !ok {
		return domain.NewNotFoundError("analysis", a.ID.String())
	}
	if stored.Status.IsTerminal() {
		return domain.ErrTerminalStatus
	}
	f.runs[a.ID] = *a
	return nil
}

func (f *fakeAnalyses) only() domain.Analysis {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.runs {
		return a
	}
	return domain.Analysis{}
}

type fakeGaps struct {
	mu           sync.Mutex
	gaps         map[uuid.UUID]domain.Gap
	papers       []domain.ValidationPaper
	topics       []domain.Topic
	createErrAt  map[int]error
	expansionErr error
}

func newFakeGaps() *fakeGaps {
	return &fakeGaps{gaps: make(map[uuid.UUID]domain.Gap)}
}

func (f *fakeGaps) Create(_ context.Context, g *domain.Gap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.createErrAt[g.OrderIndex]; err != nil {
		return err
	}
	f.gaps[g.ID] = *g
	return nil
}

func (f *fakeGaps) UpdateValidation(_ context.Context, g *domain.Gap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.gaps[g.ID]
	if !ok {
		return domain.NewNotFoundError("gap", g.ID.String())
	}
	if stored.ValidationStatus.IsTerminal() {
		return domain.ErrTerminalStatus
	}
	f.gaps[g.ID] = *g
	return nil
}

func (f *fakeGaps) UpdateExpansion(_ context.Context, g *domain.Gap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expansionErr != nil {
		return f.expansionErr
	}
	if _, ok := f.gaps[g.ID]; !ok {
		return domain.NewNotFoundError("gap", g.ID.String())
	}
	f.gaps[g.ID] = *g
	return nil
}

func (f *fakeGaps) CreateValidationPapers(_ context.Context, papers []domain.ValidationPaper) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.papers = append(f.papers, papers...)
	return nil
}

func (f *fakeGaps) CreateTopics(_ context.Context, topics []domain.Topic) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topics...)
	return nil
}

func (f *fakeGaps) byStatus() map[domain.ValidationStatus]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[domain.ValidationStatus]int)
	for _, g := range f.gaps {
		counts[g.ValidationStatus]++
	}
	return counts
}

type fakePapers struct {
	paper         *domain.Paper
	paperErr      error
	extraction    *domain.Extraction
	extractionErr error
}

func (f *fakePapers) GetPaper(_ context.Context, id string) (*domain.Paper, error) {
	if f.paperErr != nil {
		return nil, f.paperErr
	}
	if f.paper == nil {
		return nil, domain.NewNotFoundError("paper", id)
	}
	return f.paper, nil
}

func (f *fakePapers) GetExtraction(_ context.Context, id string) (*domain.Extraction, error) {
	if f.extractionErr != nil {
		return nil, f.extractionErr
	}
	if f.extraction == nil {
		return nil, domain.NewNotFoundError("extraction", id)
	}
	return f.extraction, nil
}

var errBoom = errors.New("boom")
