package research

import (
	"context"
	"regexp"
)

const triagePrompt = `You are a research triage agent. Judge whether the query below is
specific enough to research directly. A query is sufficiently specified when
it names a clear scope, concrete metrics or questions, a timeframe, and an
audience or purpose. If it is, decide INSTRUCT; if follow-up questions are
needed first, decide CLARIFY. Give a one-line reason.

Query: `

const triageShape = `Return the JSON object directly without any formatting or additional text:
{
  "decision": "CLARIFY" | "INSTRUCT",
  "reason": "one line explaining the decision"
}`

// triage classifies the query. A failed or unparseable reasoning call falls
// back to the deterministic signal heuristic so triage itself can never fail.
func (e *Engine) triage(ctx context.Context, query string, trace *agentTrace) TriageDecision {
	trace.add("triage", AgentHandoff, "judging query specificity")

	raw, err := e.reasoner.Reason(ctx, triagePrompt+query, triageShape)
	if err == nil {
		var d TriageDecision
		if err := decodeJSON(raw, &d); err == nil &&
			(d.Decision == DecisionClarify || d.Decision == DecisionInstruct) {
			trace.add("triage", AgentReasoning, d.Reason)
			return d
		}
	}
	if err != nil {
		e.logger.Warn("triage reasoning failed, using heuristic", "error", err)
	} else {
		e.logger.Warn("triage response unparseable, using heuristic")
	}

	d := heuristicTriage(query)
	trace.add("triage", AgentReasoning, d.Reason)
	return d
}

var triageSignals = []*regexp.Regexp{
	// metric keywords
	regexp.MustCompile(`(?i)\b(growth|rate|market size|market share|revenue|sales|cagr|forecast|percent|margin|volume)\b|%`),
	// geography
	regexp.MustCompile(`(?i)\b(us|u\.s\.|usa|united states|europe|emea|apac|asia|china|india|germany|uk|global|north america|latin america|africa|region|regional)\b`),
	// timeframe
	regexp.MustCompile(`(?i)\b(19|20)\d{2}\b|\b(q[1-4]|quarter|annual|yearly|monthly|decade|next year|last year|ytd)\b`),
	// segment keywords
	regexp.MustCompile(`(?i)\b(segment(ed|ation)?|sector|industry|vertical|category|commercial|residential|enterprise|consumer|b2b|b2c|demographic)\b`),
	// action verbs
	regexp.MustCompile(`(?i)\b(analyze|analyse|compare|evaluate|assess|research|investigate|examine|estimate|quantify|benchmark|identify)\b`),
}

// heuristicTriage is the deterministic, side-effect-free fallback: a query
// carrying at least 3 of the 5 signal categories and more than 100 characters
// is specific enough to instruct on directly.
func heuristicTriage(query string) TriageDecision {
	hits := 0
	for _, re := range triageSignals {
		if re.MatchString(query) {
			hits++
		}
	}
	if hits >= 3 && len(query) > 100 {
		return TriageDecision{
			Decision: DecisionInstruct,
			Reason:   "query carries enough scope, metric and timeframe signals to research directly",
		}
	}
	return TriageDecision{
		Decision: DecisionClarify,
		Reason:   "query lacks enough specificity signals; clarification needed",
	}
}
