package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrSynthesis marks the fatal synthesis path. Callers can match it with
// errors.Is to distinguish a failed report from earlier absorbed failures.
var ErrSynthesis = errors.New("synthesis failed")

const synthesisInstruction = `You are a research synthesis agent. Write the final report for the brief
below using only the numbered findings provided. Rules:
- Place a citation marker [N] after every factual sentence, where N is the
  source number of the finding that supports it.
- Where a finding carries a confidence grade, reflect it in the text
  (e.g. "(confidence: MEDIUM)").
- Never introduce facts that are not in the findings.
- Use exactly this section skeleton, as Markdown headings:
  ## Summary
  ## Background
  ## Key Findings
  ## Risks and Caveats
  ## References
- Under References list every source as "[N] title — url", one per line.`

// synthesize turns the accumulated findings and citation numbering into the
// final report. There is no partial-report fallback: an error here is fatal
// to the session, though the caller still receives the accumulated findings.
func (e *Engine) synthesize(ctx context.Context, s *session, citationIDs map[string]int, citations []Citation) (string, error) {
	st := s.state
	s.emit(ActivitySynthesis, StatusPending, st.CurrentDepth, "synthesizing report from %d findings", len(st.Findings))
	s.trace.add("synthesizer", AgentHandoff, "drafting final report")

	var b strings.Builder
	b.WriteString(synthesisInstruction)
	fmt.Fprintf(&b, "\n\nResearch brief: %s\n", st.Brief)
	if len(st.Summaries) > 0 {
		fmt.Fprintf(&b, "\nIteration summaries:\n%s\n", strings.Join(st.Summaries, "\n"))
	}
	b.WriteString("\nFindings:\n")
	for _, f := range st.Findings {
		fmt.Fprintf(&b, "[%d] %s", citationIDs[f.Source], f.Text)
		if f.Confidence != "" {
			fmt.Fprintf(&b, " (confidence: %s)", f.Confidence)
		}
		if f.MetricLabel != "" {
			fmt.Fprintf(&b, " [%s: %g %s]", f.MetricLabel, f.MetricValue, f.Unit)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nSources:\n")
	for _, c := range citations {
		fmt.Fprintf(&b, "[%d] %s — %s\n", c.ID, c.Title, c.URL)
	}

	report, err := e.reasoner.Reason(ctx, b.String(), "")
	if err != nil {
		s.emit(ActivitySynthesis, StatusError, st.CurrentDepth, "synthesis failed: %v", err)
		return "", err
	}
	report = strings.TrimSpace(report)
	if report == "" {
		s.emit(ActivitySynthesis, StatusError, st.CurrentDepth, "synthesis returned empty report")
		return "", fmt.Errorf("empty synthesis response")
	}

	s.trace.add("synthesizer", AgentMessageOutput, fmt.Sprintf("report drafted (%d chars)", len(report)))
	s.emit(ActivitySynthesis, StatusComplete, st.CurrentDepth, "report ready")
	return report, nil
}
