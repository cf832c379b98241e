package research

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const briefPrompt = `You are a research instruction agent. Merge the query and any
clarification answers below into one maximally specific research brief.
State the scope, geography, timeframe, required metrics and intended
audience explicitly. Keep everything the user asked for; invent nothing.
Answer with the brief text only.`

// buildBrief produces the research brief consumed by the iterative loop.
// It always succeeds: a failed reasoning call degrades to the original query.
func (e *Engine) buildBrief(ctx context.Context, query string, answers map[string]string, trace *agentTrace) string {
	trace.add("instruction_builder", AgentHandoff, "building research brief")

	var b strings.Builder
	b.WriteString(briefPrompt)
	b.WriteString("\n\nQuery: ")
	b.WriteString(query)
	if len(answers) > 0 {
		b.WriteString("\n\nClarification answers:")
		// Deterministic prompt ordering regardless of map iteration.
		keys := make([]string, 0, len(answers))
		for q := range answers {
			keys = append(keys, q)
		}
		sort.Strings(keys)
		for _, q := range keys {
			fmt.Fprintf(&b, "\n- Q: %s\n  A: %s", q, answers[q])
		}
	}

	brief, err := e.reasoner.Reason(ctx, b.String(), "")
	if err != nil || strings.TrimSpace(brief) == "" {
		e.logger.Warn("brief reasoning failed, using query as degraded brief", "error", err)
		trace.add("instruction_builder", AgentMessageOutput, query)
		return query
	}

	brief = strings.TrimSpace(brief)
	trace.add("instruction_builder", AgentMessageOutput, brief)
	return brief
}
