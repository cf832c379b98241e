package research

import "context"

const clarifyPrompt = `You are a research clarification agent. The query below is not specific
enough to research well. Write between 3 and 6 targeted follow-up questions
that would pin down scope, timeframe, geography, required metrics and the
purpose of the research. Ask only what materially changes the research plan.

Query: `

const clarifyShape = `Return the JSON object directly without any formatting or additional text:
{
  "questions": ["question 1", "question 2", "question 3"]
}`

// fallbackQuestions covers the four dimensions that most often make a query
// researchable. Clarification must never fail to produce some question set.
var fallbackQuestions = []string{
	"What timeframe should the research cover?",
	"Which geography or market should it focus on?",
	"What will the research be used for, and by whom?",
	"Which specific metrics or data points matter most to you?",
}

// clarify generates follow-up questions for an underspecified query.
func (e *Engine) clarify(ctx context.Context, query string, trace *agentTrace) ClarificationSet {
	trace.add("clarifier", AgentHandoff, "generating clarification questions")

	raw, err := e.reasoner.Reason(ctx, clarifyPrompt+query, clarifyShape)
	if err == nil {
		var set ClarificationSet
		if err := decodeJSON(raw, &set); err == nil && len(set.Questions) >= 3 && len(set.Questions) <= 6 {
			trace.add("clarifier", AgentClarifications, set.Questions[0])
			return set
		}
	}
	if err != nil {
		e.logger.Warn("clarification reasoning failed, using fallback questions", "error", err)
	} else {
		e.logger.Warn("clarification response unparseable, using fallback questions")
	}

	set := ClarificationSet{Questions: append([]string(nil), fallbackQuestions...)}
	trace.add("clarifier", AgentClarifications, set.Questions[0])
	return set
}
