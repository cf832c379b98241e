package research

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// runLoop drives the depth-bounded, time-boxed search -> extract -> analyze
// cycle. Terminal conditions are evaluated at the top of every iteration in
// priority order; the time budget is cooperative, so a slow in-flight call
// can overrun it by at most one iteration.
func (s *session) runLoop(ctx context.Context) TerminationReason {
	for {
		if reason, done := s.checkTerminal(ctx); done {
			return reason
		}

		s.state.CurrentDepth++
		depth := s.state.CurrentDepth
		s.emit(ActivityThought, StatusPending, depth, "starting research depth %d of %d", depth, s.engine.cfg.MaxDepth)

		results, ok := s.searchPhase(ctx)
		if !ok {
			continue
		}

		s.extractPhase(ctx, results)
		s.analyzePhase(ctx)
	}
}

// checkTerminal applies the loop's terminal conditions, highest priority
// first: caller abort, wall clock, depth, failure count, satisfied analysis.
func (s *session) checkTerminal(ctx context.Context) (TerminationReason, bool) {
	st := s.state
	if ctx.Err() != nil {
		return TerminatedCancelled, true
	}
	if time.Since(st.StartTime) >= st.TimeLimit {
		return TerminatedTimeExhausted, true
	}
	if st.CurrentDepth >= s.engine.cfg.MaxDepth {
		return TerminatedDepthExhausted, true
	}
	if st.FailedAttempts >= st.MaxFailedAttempts {
		return TerminatedTooManyFailures, true
	}
	if s.satisfied {
		return TerminatedSatisfied, true
	}
	return "", false
}

// searchPhase issues one search call and streams every surviving source to
// the reporter immediately. A failure counts toward FailedAttempts and sends
// control back to the terminal-condition check.
func (s *session) searchPhase(ctx context.Context) ([]Source, bool) {
	depth := s.state.CurrentDepth

	topic := s.state.CurrentFocus
	if s.state.NextSearchTopic != "" {
		topic = s.state.NextSearchTopic
		s.state.NextSearchTopic = ""
	}

	s.emit(ActivitySearch, StatusPending, depth, "searching: %s", topic)
	s.trace.add("researcher", AgentToolCall, "search: "+topic)

	results, err := s.engine.searcher.Search(ctx, topic, s.engine.cfg.SearchMaxResults)
	if err != nil {
		s.emit(ActivitySearch, StatusError, depth, "search failed: %v", err)
		s.engine.logger.Warn("search failed", "topic", topic, "error", err)
		s.state.FailedAttempts++
		return nil, false
	}

	kept := make([]Source, 0, len(results))
	for _, src := range results {
		if !s.engine.classifier.Allowed(src.URL) {
			continue
		}
		s.engine.reporter.OnSource(src)
		kept = append(kept, src)
	}

	s.emit(ActivitySearch, StatusComplete, depth, "found %d usable sources for %q", len(kept), topic)
	return kept, true
}

const extractPromptTemplate = `Extract verifiable factual claims relevant to the research focus below.
Keep each claim to one statement, attach section or page references where the
document provides them, grade confidence HIGH, MEDIUM or LOW, and capture any
quantitative metric as label, value and unit.

Research focus: %s`

// extractPhase fans extraction out over the top search results plus any URL
// the previous analysis asked for. Calls run concurrently with a fan-out
// bounded by extractTopResults+1; a failed URL contributes zero findings and
// never fails the phase.
func (s *session) extractPhase(ctx context.Context, results []Source) {
	depth := s.state.CurrentDepth

	urls := make([]string, 0, extractTopResults+1)
	seen := make(map[string]bool)
	if u := s.state.URLToSearch; u != "" {
		s.state.URLToSearch = ""
		if s.engine.classifier.Allowed(u) {
			urls = append(urls, u)
			seen[u] = true
		}
	}
	for _, src := range results {
		if len(urls) >= cap(urls) {
			break
		}
		if seen[src.URL] {
			continue
		}
		urls = append(urls, src.URL)
		seen[src.URL] = true
	}
	if len(urls) == 0 {
		return
	}

	s.emit(ActivityExtract, StatusPending, depth, "extracting claims from %d sources", len(urls))
	prompt := fmt.Sprintf(extractPromptTemplate, s.state.CurrentFocus)

	// Per-URL outcomes go to the log and trace only; the phase emits a single
	// completion so progress advances exactly once per extract phase.
	var total int
	var wg sync.WaitGroup
	for _, u := range urls {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()

			extractions, err := s.engine.extractor.Extract(ctx, []string{url}, prompt)
			if err != nil {
				s.engine.logger.Warn("extraction failed", "url", url, "error", err)
				return
			}

			added := 0
			s.mu.Lock()
			for _, ex := range extractions {
				for _, c := range ex.Claims {
					s.state.Findings = append(s.state.Findings, Finding{
						Text:        c.Statement,
						Source:      ex.URL,
						Section:     c.Section,
						Page:        c.Page,
						Confidence:  c.Confidence,
						MetricLabel: c.MetricLabel,
						MetricValue: c.MetricValue,
						Unit:        c.Unit,
					})
					added++
				}
			}
			total += added
			s.mu.Unlock()

			s.trace.add("researcher", AgentToolCall, "extract: "+url)
			s.engine.logger.Info("extraction finished", "url", url, "claims", added)
		}(u)
	}
	wg.Wait()

	s.emit(ActivityExtract, StatusComplete, depth, "extracted %d claims from %d sources", total, len(urls))
}

const analyzeShape = `Return the JSON object directly without any formatting or additional text:
{
  "summary": "what the findings establish so far",
  "gaps": ["missing piece of information"],
  "next_steps": ["suggested next action"],
  "should_continue": true,
  "next_search_topic": "optional query for the next search",
  "url_to_search": "optional single URL worth extracting next"
}`

type analysis struct {
	Summary         string   `json:"summary"`
	Gaps            []string `json:"gaps"`
	NextSteps       []string `json:"next_steps"`
	ShouldContinue  bool     `json:"should_continue"`
	NextSearchTopic string   `json:"next_search_topic"`
	URLToSearch     string   `json:"url_to_search"`
}

// analyzePhase asks the reasoner to judge the accumulated findings and pick
// the next focus. Parse failures count toward FailedAttempts; a satisfied
// judgment arms the terminal check for the next iteration.
func (s *session) analyzePhase(ctx context.Context) {
	depth := s.state.CurrentDepth
	st := s.state

	s.emit(ActivityAnalyze, StatusPending, depth, "analyzing %d findings", len(st.Findings))

	remaining := st.TimeLimit - time.Since(st.StartTime)
	if remaining < 0 {
		remaining = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a research manager. Judge whether the findings below answer the brief, name the remaining gaps, and decide whether to continue.\n")
	fmt.Fprintf(&b, "\nResearch brief: %s\n", st.Brief)
	fmt.Fprintf(&b, "Current focus: %s\n", st.CurrentFocus)
	fmt.Fprintf(&b, "Depth %d of %d. Remaining time budget: %d seconds; if it is nearly spent, wrap up.\n", depth, s.engine.cfg.MaxDepth, int(remaining.Seconds()))
	if len(st.Summaries) > 0 {
		fmt.Fprintf(&b, "\nEarlier summaries:\n%s\n", strings.Join(st.Summaries, "\n"))
	}
	b.WriteString("\nFindings:\n")
	for _, f := range st.Findings {
		fmt.Fprintf(&b, "[%s]: %s\n", f.Source, f.Text)
	}

	raw, err := s.engine.reasoner.Reason(ctx, b.String(), analyzeShape)
	if err != nil {
		s.emit(ActivityAnalyze, StatusError, depth, "analysis failed: %v", err)
		s.engine.logger.Warn("analysis reasoning failed", "error", err)
		st.FailedAttempts++
		return
	}

	var a analysis
	if err := decodeJSON(raw, &a); err != nil {
		s.emit(ActivityAnalyze, StatusError, depth, "analysis unparseable: %v", err)
		s.engine.logger.Warn("analysis response unparseable", "error", err)
		st.FailedAttempts++
		return
	}

	st.Summaries = append(st.Summaries, a.Summary)
	st.NextSearchTopic = a.NextSearchTopic
	st.URLToSearch = a.URLToSearch
	s.trace.add("researcher", AgentReasoning, a.Summary)
	s.emit(ActivityAnalyze, StatusComplete, depth, "analysis complete: %d gaps remain", len(a.Gaps))

	if !a.ShouldContinue || len(a.Gaps) == 0 {
		s.satisfied = true
		return
	}

	// Narrow the working focus to the first gap. The original user query is
	// preserved separately in OriginalQuery.
	st.CurrentFocus = a.Gaps[0]
	s.emit(ActivityThought, StatusPending, depth, "next focus: %s", st.CurrentFocus)
}
