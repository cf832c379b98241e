package research

import "time"

// Decision is the outcome of query triage.
type Decision string

const (
	DecisionClarify  Decision = "CLARIFY"
	DecisionInstruct Decision = "INSTRUCT"
)

// TriageDecision classifies whether a query is specific enough to research.
type TriageDecision struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
}

// ClarificationSet holds the follow-up questions returned to the caller when
// triage decides the query is underspecified.
type ClarificationSet struct {
	Questions []string `json:"questions"`
}

// Source is a URL discovered during the search phase. Sources are not
// deduplicated at discovery time; the same URL may be reported more than once
// across iterations.
type Source struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Confidence grades how well-supported an extracted claim is.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Finding is a single extracted factual claim tied to one source URL.
type Finding struct {
	Text        string     `json:"text"`
	Source      string     `json:"source"`
	Section     string     `json:"section,omitempty"`
	Page        int        `json:"page,omitempty"`
	Confidence  Confidence `json:"confidence,omitempty"`
	MetricLabel string     `json:"metric_label,omitempty"`
	MetricValue float64    `json:"metric_value,omitempty"`
	Unit        string     `json:"unit,omitempty"`
}

// Citation is a numbered bibliography entry derived from the distinct source
// URLs referenced by findings. IDs start at 1 and follow first-seen order.
type Citation struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

// ActivityType identifies which stage produced an activity event.
type ActivityType string

const (
	ActivitySearch    ActivityType = "search"
	ActivityExtract   ActivityType = "extract"
	ActivityAnalyze   ActivityType = "analyze"
	ActivityReasoning ActivityType = "reasoning"
	ActivitySynthesis ActivityType = "synthesis"
	ActivityThought   ActivityType = "thought"
)

// ActivityStatus is the lifecycle state of an activity event.
type ActivityStatus string

const (
	StatusPending  ActivityStatus = "pending"
	StatusComplete ActivityStatus = "complete"
	StatusError    ActivityStatus = "error"
)

// ActivityEvent is one entry of the append-only progress log streamed to the
// consumer while a session runs.
type ActivityEvent struct {
	Type      ActivityType   `json:"type"`
	Status    ActivityStatus `json:"status"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Depth     int            `json:"depth"`
}

// AgentEventType identifies why a pipeline stage recorded a trace entry.
type AgentEventType string

const (
	AgentHandoff        AgentEventType = "handoff"
	AgentToolCall       AgentEventType = "tool_call"
	AgentMessageOutput  AgentEventType = "message_output"
	AgentReasoning      AgentEventType = "reasoning"
	AgentClarifications AgentEventType = "clarifications"
)

// AgentEvent reconstructs a human-readable trace of which stage acted and
// why. The trace is purely observational and never read back into control
// flow.
type AgentEvent struct {
	AgentName string         `json:"agent_name"`
	Type      AgentEventType `json:"type"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

// Progress reports step completion to the consumer.
type Progress struct {
	CompletedSteps int `json:"completed_steps"`
	TotalSteps     int `json:"total_steps"`
}

// TerminationReason records why the iterative loop stopped.
type TerminationReason string

const (
	TerminatedCancelled       TerminationReason = "cancelled"
	TerminatedTimeExhausted   TerminationReason = "time_exhausted"
	TerminatedDepthExhausted  TerminationReason = "depth_exhausted"
	TerminatedTooManyFailures TerminationReason = "too_many_failures"
	TerminatedSatisfied       TerminationReason = "satisfied"
)

// ResearchState is the mutable session record owned exclusively by the
// iterative loop for the duration of one session. It is never persisted
// across sessions.
type ResearchState struct {
	OriginalQuery      string        `json:"original_query"`
	CurrentFocus       string        `json:"current_focus"`
	Brief              string        `json:"brief"`
	Findings           []Finding     `json:"findings"`
	Summaries          []string      `json:"summaries"`
	NextSearchTopic    string        `json:"next_search_topic"`
	URLToSearch        string        `json:"url_to_search"`
	CurrentDepth       int           `json:"current_depth"`
	FailedAttempts     int           `json:"failed_attempts"`
	MaxFailedAttempts  int           `json:"max_failed_attempts"`
	CompletedSteps     int           `json:"completed_steps"`
	TotalExpectedSteps int           `json:"total_expected_steps"`
	StartTime          time.Time     `json:"start_time"`
	TimeLimit          time.Duration `json:"time_limit"`
}

// Request is the caller-facing pipeline input. ClarificationAnswers maps a
// previously returned question to the caller's answer.
type Request struct {
	Query                string            `json:"query"`
	ClarificationAnswers map[string]string `json:"clarification_answers,omitempty"`
}

// Result is the caller-facing pipeline output. When NeedsClarification is
// set, only Questions is populated and the session ended before any research
// call was made. On synthesis failure the engine returns an error together
// with a Result carrying the accumulated findings and citations so the caller
// can degrade gracefully.
type Result struct {
	NeedsClarification bool              `json:"needs_clarification"`
	Questions          []string          `json:"questions,omitempty"`
	Brief              string            `json:"brief,omitempty"`
	Report             string            `json:"report,omitempty"`
	Citations          []Citation        `json:"citations,omitempty"`
	Findings           []Finding         `json:"findings,omitempty"`
	Summaries          []string          `json:"summaries,omitempty"`
	AgentTrace         []AgentEvent      `json:"agent_trace,omitempty"`
	Terminated         TerminationReason `json:"terminated,omitempty"`
}
