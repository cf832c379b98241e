package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

// --- fakes ---

type stubSearcher struct {
	mu      sync.Mutex
	queries []string
	results []Source
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, query string, maxResults int) ([]Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

func (s *stubSearcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries)
}

type stubExtractor struct {
	mu         sync.Mutex
	urls       []string
	failSubstr string
	err        error
}

func (e *stubExtractor) Extract(ctx context.Context, urls []string, prompt string) ([]Extraction, error) {
	e.mu.Lock()
	e.urls = append(e.urls, urls...)
	e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}
	if e.failSubstr != "" && strings.Contains(urls[0], e.failSubstr) {
		return nil, errors.New("fetch failed")
	}
	return []Extraction{{
		URL: urls[0],
		Claims: []Claim{{
			Statement:  "claim from " + urls[0],
			Confidence: ConfidenceHigh,
		}},
	}}, nil
}

func (e *stubExtractor) extractedURLs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.urls))
	copy(out, e.urls)
	return out
}

// stubReasoner routes each reasoning call to a scripted response based on the
// response shape hint or the prompt prefix.
type stubReasoner struct {
	mu            sync.Mutex
	triageResp    string
	clarifyResp   string
	briefResp     string
	analysisResps []string
	analysisCalls int
	synthResp     string
	synthErr      error
}

func (r *stubReasoner) Reason(ctx context.Context, prompt, shape string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case shape == triageShape:
		if r.triageResp == "" {
			return `{"decision":"INSTRUCT","reason":"scripted"}`, nil
		}
		return r.triageResp, nil
	case shape == clarifyShape:
		return r.clarifyResp, nil
	case shape == analyzeShape:
		if len(r.analysisResps) == 0 {
			return "", errors.New("no analysis scripted")
		}
		i := r.analysisCalls
		r.analysisCalls++
		if i >= len(r.analysisResps) {
			i = len(r.analysisResps) - 1
		}
		return r.analysisResps[i], nil
	case strings.HasPrefix(prompt, "You are a research instruction agent"):
		if r.briefResp == "" {
			return "scripted brief", nil
		}
		return r.briefResp, nil
	default: // synthesis
		if r.synthErr != nil {
			return "", r.synthErr
		}
		if r.synthResp == "" {
			return "## Summary\nscripted report [1]", nil
		}
		return r.synthResp, nil
	}
}

func analysisJSON(t *testing.T, shouldContinue bool, gaps []string, nextTopic, urlToSearch string) string {
	t.Helper()
	raw, err := json.Marshal(analysis{
		Summary:         "iteration summary",
		Gaps:            gaps,
		ShouldContinue:  shouldContinue,
		NextSearchTopic: nextTopic,
		URLToSearch:     urlToSearch,
	})
	if err != nil {
		t.Fatalf("marshal analysis: %v", err)
	}
	return string(raw)
}

type recordingReporter struct {
	mu         sync.Mutex
	activities []ActivityEvent
	sources    []Source
	progress   []Progress
}

func (r *recordingReporter) OnActivity(e ActivityEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activities = append(r.activities, e)
}

func (r *recordingReporter) OnSource(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, s)
}

func (r *recordingReporter) OnProgress(p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func newTestEngine(t *testing.T, cfg Config, s Searcher, x Extractor, r Reasoner, rep Reporter) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, Deps{
		Searcher:  s,
		Extractor: x,
		Reasoner:  r,
		Reporter:  rep,
	})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

func testSources(n int) []Source {
	out := make([]Source, n)
	for i := range out {
		out[i] = Source{
			URL:   fmt.Sprintf("https://example.com/doc%d", i+1),
			Title: fmt.Sprintf("Doc %d", i+1),
		}
	}
	return out
}

// --- tests ---

func TestNewEngineRequiresCapabilities(t *testing.T) {
	_, err := NewEngine(Config{}, Deps{Searcher: &stubSearcher{}})
	if err == nil {
		t.Fatal("expected error when extractor and reasoner are missing")
	}
}

func TestRunNeedsClarification(t *testing.T) {
	searcher := &stubSearcher{}
	extractor := &stubExtractor{}
	reasoner := &stubReasoner{
		triageResp:  `{"decision":"CLARIFY","reason":"too vague"}`,
		clarifyResp: `{"questions":["What timeframe?","Which market?","Which metrics?"]}`,
	}

	engine := newTestEngine(t, Config{}, searcher, extractor, reasoner, nil)

	result, err := engine.Run(context.Background(), Request{Query: "tell me about batteries"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.NeedsClarification {
		t.Fatal("expected NeedsClarification")
	}
	if len(result.Questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(result.Questions))
	}
	if result.Report != "" {
		t.Errorf("expected no report, got %q", result.Report)
	}
	if searcher.callCount() != 0 {
		t.Errorf("searcher called %d times during clarification", searcher.callCount())
	}
	if len(extractor.extractedURLs()) != 0 {
		t.Errorf("extractor called during clarification")
	}
}

func TestRunClarificationFallbackQuestions(t *testing.T) {
	reasoner := &stubReasoner{
		triageResp:  `{"decision":"CLARIFY","reason":"too vague"}`,
		clarifyResp: `{"questions":["only one"]}`, // below the minimum of 3
	}
	engine := newTestEngine(t, Config{}, &stubSearcher{}, &stubExtractor{}, reasoner, nil)

	result, err := engine.Run(context.Background(), Request{Query: "tell me about cats"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Questions) != len(fallbackQuestions) {
		t.Fatalf("expected %d fallback questions, got %d", len(fallbackQuestions), len(result.Questions))
	}
}

func TestRunClarifyWithAnswersProceeds(t *testing.T) {
	searcher := &stubSearcher{results: testSources(2)}
	reasoner := &stubReasoner{
		triageResp:    `{"decision":"CLARIFY","reason":"too vague"}`,
		analysisResps: []string{analysisJSON(t, false, nil, "", "")},
	}
	engine := newTestEngine(t, Config{MaxDepth: 3}, searcher, &stubExtractor{}, reasoner, nil)

	result, err := engine.Run(context.Background(), Request{
		Query:                "tell me about batteries",
		ClarificationAnswers: map[string]string{"What timeframe?": "2020-2025"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.NeedsClarification {
		t.Fatal("answered clarification must not short-circuit again")
	}
	if searcher.callCount() == 0 {
		t.Fatal("expected research to run once answers were supplied")
	}
}

func TestRunDepthExhausted(t *testing.T) {
	searcher := &stubSearcher{results: testSources(2)}
	extractor := &stubExtractor{}
	reasoner := &stubReasoner{
		analysisResps: []string{analysisJSON(t, true, []string{"pricing data"}, "", "")},
	}
	reporter := &recordingReporter{}

	engine := newTestEngine(t, Config{MaxDepth: 2}, searcher, extractor, reasoner, reporter)

	result, err := engine.Run(context.Background(), Request{Query: "battery market"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Terminated != TerminatedDepthExhausted {
		t.Fatalf("terminated = %q, want %q", result.Terminated, TerminatedDepthExhausted)
	}
	if got := searcher.callCount(); got != 2 {
		t.Errorf("search called %d times, want 2", got)
	}
	if result.Report == "" {
		t.Error("expected a synthesized report")
	}
	if len(result.Summaries) != 2 {
		t.Errorf("got %d iteration summaries, want 2", len(result.Summaries))
	}
	if len(result.Citations) == 0 {
		t.Error("expected citations for extracted findings")
	}

	reporter.mu.Lock()
	defer reporter.mu.Unlock()
	if len(reporter.sources) == 0 {
		t.Error("expected sources streamed to the reporter")
	}
	// Each depth completes exactly search, extract and analyze once; the
	// extract fan-out must not inflate the step count past the budget.
	for _, p := range reporter.progress {
		if p.CompletedSteps > p.TotalSteps {
			t.Fatalf("progress overflow: %d/%d", p.CompletedSteps, p.TotalSteps)
		}
	}
	last := reporter.progress[len(reporter.progress)-1]
	if want := 2*3 + 1; last.CompletedSteps != want || last.TotalSteps != want {
		t.Errorf("final progress %d/%d, want %d/%d", last.CompletedSteps, last.TotalSteps, want, want)
	}
}

func TestRunTooManyFailures(t *testing.T) {
	searcher := &stubSearcher{err: errors.New("search api down")}

	engine := newTestEngine(t, Config{}, searcher, &stubExtractor{}, &stubReasoner{}, nil)

	result, err := engine.Run(context.Background(), Request{Query: "battery market"})
	if err == nil {
		t.Fatal("expected failure exhaustion to surface as an error")
	}
	if !errors.Is(err, ErrTooManyFailures) {
		t.Errorf("error %v does not match ErrTooManyFailures", err)
	}
	if result == nil {
		t.Fatal("expected partial result alongside the error")
	}
	if result.Terminated != TerminatedTooManyFailures {
		t.Fatalf("terminated = %q, want %q", result.Terminated, TerminatedTooManyFailures)
	}
	if result.Report != "" {
		t.Errorf("unexpected report %q after failure exhaustion", result.Report)
	}
	if got := searcher.callCount(); got != defaultMaxFailedAttempts {
		t.Errorf("search called %d times, want %d", got, defaultMaxFailedAttempts)
	}
	if len(result.Findings) != 0 {
		t.Errorf("expected no findings, got %d", len(result.Findings))
	}
}

func TestRunTimeExhausted(t *testing.T) {
	searcher := &stubSearcher{results: testSources(1)}
	engine := newTestEngine(t, Config{TimeLimit: time.Nanosecond}, searcher, &stubExtractor{}, &stubReasoner{}, nil)

	result, err := engine.Run(context.Background(), Request{Query: "battery market"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Terminated != TerminatedTimeExhausted {
		t.Fatalf("terminated = %q, want %q", result.Terminated, TerminatedTimeExhausted)
	}
}

func TestRunCancelled(t *testing.T) {
	searcher := &stubSearcher{results: testSources(1)}
	engine := newTestEngine(t, Config{}, searcher, &stubExtractor{}, &stubReasoner{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := engine.Run(ctx, Request{Query: "battery market"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// A caller abort is recorded distinctly from a spent time budget.
	if result.Terminated != TerminatedCancelled {
		t.Fatalf("terminated = %q, want %q", result.Terminated, TerminatedCancelled)
	}
	if searcher.callCount() != 0 {
		t.Errorf("search called %d times after cancellation", searcher.callCount())
	}
}

func TestRunSatisfiedAfterAnalysis(t *testing.T) {
	searcher := &stubSearcher{results: testSources(3)}
	extractor := &stubExtractor{}
	reasoner := &stubReasoner{
		analysisResps: []string{analysisJSON(t, false, nil, "", "")},
	}

	engine := newTestEngine(t, Config{}, searcher, extractor, reasoner, nil)

	result, err := engine.Run(context.Background(), Request{Query: "battery market"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Terminated != TerminatedSatisfied {
		t.Fatalf("terminated = %q, want %q", result.Terminated, TerminatedSatisfied)
	}
	if got := searcher.callCount(); got != 1 {
		t.Errorf("search called %d times, want 1", got)
	}
}

func TestExtractFailureIsolation(t *testing.T) {
	searcher := &stubSearcher{results: []Source{
		{URL: "https://example.com/good1"},
		{URL: "https://example.com/bad"},
		{URL: "https://example.com/good2"},
	}}
	extractor := &stubExtractor{failSubstr: "bad"}
	reasoner := &stubReasoner{
		analysisResps: []string{analysisJSON(t, false, nil, "", "")},
	}

	engine := newTestEngine(t, Config{}, searcher, extractor, reasoner, nil)

	result, err := engine.Run(context.Background(), Request{Query: "battery market"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// One failed URL never fails the phase or the session.
	if result.Terminated != TerminatedSatisfied {
		t.Fatalf("terminated = %q, want %q", result.Terminated, TerminatedSatisfied)
	}
	if len(result.Findings) != 2 {
		t.Fatalf("got %d findings, want 2 from the surviving URLs", len(result.Findings))
	}
	for _, f := range result.Findings {
		if strings.Contains(f.Source, "bad") {
			t.Errorf("finding attributed to failed URL %s", f.Source)
		}
	}
	if got := len(extractor.extractedURLs()); got != 3 {
		t.Errorf("extractor called for %d URLs, want 3", got)
	}
}

func TestAnalysisDirectivesSteerNextIteration(t *testing.T) {
	searcher := &stubSearcher{results: testSources(2)}
	extractor := &stubExtractor{}
	reasoner := &stubReasoner{
		analysisResps: []string{
			analysisJSON(t, true, []string{"regional split"}, "battery market europe", "https://example.com/report"),
			analysisJSON(t, false, nil, "", ""),
		},
	}

	engine := newTestEngine(t, Config{MaxDepth: 3}, searcher, extractor, reasoner, nil)

	result, err := engine.Run(context.Background(), Request{Query: "battery market"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Terminated != TerminatedSatisfied {
		t.Fatalf("terminated = %q, want %q", result.Terminated, TerminatedSatisfied)
	}

	searcher.mu.Lock()
	queries := append([]string(nil), searcher.queries...)
	searcher.mu.Unlock()
	if len(queries) != 2 {
		t.Fatalf("got %d search calls, want 2", len(queries))
	}
	if queries[0] != "battery market" {
		t.Errorf("first search %q, want the original query", queries[0])
	}
	if queries[1] != "battery market europe" {
		t.Errorf("second search %q, want the directed topic", queries[1])
	}

	var sawDirectedURL bool
	for _, u := range extractor.extractedURLs() {
		if u == "https://example.com/report" {
			sawDirectedURL = true
		}
	}
	if !sawDirectedURL {
		t.Error("directed URL was never extracted")
	}
}

func TestRunSynthesisFailureKeepsPartialResult(t *testing.T) {
	searcher := &stubSearcher{results: testSources(2)}
	reasoner := &stubReasoner{
		analysisResps: []string{analysisJSON(t, false, nil, "", "")},
		synthErr:      errors.New("model unavailable"),
	}

	engine := newTestEngine(t, Config{}, searcher, &stubExtractor{}, reasoner, nil)

	result, err := engine.Run(context.Background(), Request{Query: "battery market"})
	if err == nil {
		t.Fatal("expected synthesis failure to surface as an error")
	}
	if !errors.Is(err, ErrSynthesis) {
		t.Errorf("error %v does not match ErrSynthesis", err)
	}
	if result == nil {
		t.Fatal("expected partial result alongside the error")
	}
	if result.Report != "" {
		t.Errorf("unexpected report %q on synthesis failure", result.Report)
	}
	if len(result.Findings) == 0 {
		t.Error("expected accumulated findings in the partial result")
	}
	if len(result.Citations) == 0 {
		t.Error("expected citations in the partial result")
	}
	if result.Terminated != TerminatedSatisfied {
		t.Errorf("terminated = %q, want %q", result.Terminated, TerminatedSatisfied)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{name: "bare object", raw: `{"decision":"CLARIFY","reason":"x"}`},
		{name: "code fence", raw: "```json\n{\"decision\":\"INSTRUCT\",\"reason\":\"x\"}\n```"},
		{name: "surrounding prose", raw: `Here you go: {"decision":"CLARIFY","reason":"x"} hope that helps`},
		{name: "no object", raw: "no json here", wantErr: true},
		{name: "malformed", raw: `{"decision":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d TriageDecision
			err := decodeJSON(tt.raw, &d)
			if tt.wantErr != (err != nil) {
				t.Fatalf("decodeJSON(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}
