package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mikeboe/deep-research/pkg/sources"
)

// ErrTooManyFailures marks a session that stopped because successive stage
// failures exhausted the failure allowance. The caller still receives the
// accumulated Result.
var ErrTooManyFailures = errors.New("too many failed attempts")

// Config bounds one research session. Zero values fall back to the defaults
// below.
type Config struct {
	MaxDepth          int
	TimeLimit         time.Duration
	MaxFailedAttempts int
	SearchMaxResults  int
}

const (
	defaultMaxDepth          = 7
	defaultTimeLimit         = 4*time.Minute + 30*time.Second
	defaultMaxFailedAttempts = 3
	defaultSearchMaxResults  = 10

	// Per iteration the extract phase takes the top search results plus an
	// optional URL the previous analysis asked for, so the concurrent
	// fan-out is bounded by extractTopResults+1.
	extractTopResults = 3
)

func (c Config) withDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.TimeLimit <= 0 {
		c.TimeLimit = defaultTimeLimit
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = defaultMaxFailedAttempts
	}
	if c.SearchMaxResults <= 0 {
		c.SearchMaxResults = defaultSearchMaxResults
	}
	return c
}

// Deps are the injected collaborators of the engine. Searcher, Extractor and
// Reasoner are required; Classifier defaults to the built-in denylist and
// Reporter to a no-op sink.
type Deps struct {
	Searcher   Searcher
	Extractor  Extractor
	Reasoner   Reasoner
	Classifier *sources.Classifier
	Reporter   Reporter
	Logger     *slog.Logger
}

// Engine runs the triage -> brief -> iterative loop -> synthesis pipeline.
// An Engine holds no per-session state and may serve concurrent sessions.
type Engine struct {
	cfg        Config
	searcher   Searcher
	extractor  Extractor
	reasoner   Reasoner
	classifier *sources.Classifier
	reporter   Reporter
	logger     *slog.Logger
}

func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.Searcher == nil || deps.Extractor == nil || deps.Reasoner == nil {
		return nil, fmt.Errorf("searcher, extractor and reasoner are required")
	}
	if deps.Classifier == nil {
		deps.Classifier = sources.NewClassifier(sources.DefaultDenylist)
	}
	if deps.Reporter == nil {
		deps.Reporter = NopReporter{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{
		cfg:        cfg.withDefaults(),
		searcher:   deps.Searcher,
		extractor:  deps.Extractor,
		reasoner:   deps.Reasoner,
		classifier: deps.Classifier,
		reporter:   NewSyncReporter(deps.Reporter),
		logger:     deps.Logger,
	}, nil
}

// Run executes one full research session. When the query needs clarification
// and no answers were supplied, it returns early with the questions and makes
// no search, extract or analyze calls. On synthesis failure it returns both
// the error and a Result holding everything accumulated before the failure.
func (e *Engine) Run(ctx context.Context, req Request) (*Result, error) {
	trace := newAgentTrace()

	decision := e.triage(ctx, req.Query, trace)
	e.logger.Info("triage decision", "decision", decision.Decision, "reason", decision.Reason)

	if decision.Decision == DecisionClarify && len(req.ClarificationAnswers) == 0 {
		set := e.clarify(ctx, req.Query, trace)
		return &Result{
			NeedsClarification: true,
			Questions:          set.Questions,
			AgentTrace:         trace.events(),
		}, nil
	}

	brief := e.buildBrief(ctx, req.Query, req.ClarificationAnswers, trace)

	s := &session{
		engine: e,
		state: &ResearchState{
			OriginalQuery:     req.Query,
			CurrentFocus:      req.Query,
			Brief:             brief,
			MaxFailedAttempts: e.cfg.MaxFailedAttempts,
			// search + extract + analyze per depth, plus synthesis
			TotalExpectedSteps: e.cfg.MaxDepth*3 + 1,
			StartTime:          time.Now(),
			TimeLimit:          e.cfg.TimeLimit,
		},
		trace: trace,
	}

	reason := s.runLoop(ctx)
	e.logger.Info("research loop terminated",
		"reason", reason,
		"depth", s.state.CurrentDepth,
		"findings", len(s.state.Findings))

	citationIDs, citations := AssignCitations(s.state.Findings)

	result := &Result{
		Brief:      brief,
		Citations:  citations,
		Findings:   s.state.Findings,
		Summaries:  s.state.Summaries,
		Terminated: reason,
	}

	// Failure exhaustion is a session-level error, not a normal completion:
	// no report is synthesized and the caller gets the partial findings.
	if reason == TerminatedTooManyFailures {
		result.AgentTrace = trace.events()
		return result, fmt.Errorf("%w (%d)", ErrTooManyFailures, s.state.FailedAttempts)
	}

	report, err := e.synthesize(ctx, s, citationIDs, citations)
	result.AgentTrace = trace.events()
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	result.Report = report
	return result, nil
}

// session carries the mutable state of one Run call. The mutex guards
// CompletedSteps, which the concurrent extract phase increments.
type session struct {
	engine    *Engine
	state     *ResearchState
	trace     *agentTrace
	satisfied bool
	mu        sync.Mutex
}

// emit appends one activity event and, for completions, advances the
// progress counters. Events reach the reporter in real time.
func (s *session) emit(typ ActivityType, status ActivityStatus, depth int, format string, args ...any) {
	s.engine.reporter.OnActivity(ActivityEvent{
		Type:      typ,
		Status:    status,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
		Depth:     depth,
	})
	if status == StatusComplete {
		s.mu.Lock()
		s.state.CompletedSteps++
		progress := Progress{
			CompletedSteps: s.state.CompletedSteps,
			TotalSteps:     s.state.TotalExpectedSteps,
		}
		s.mu.Unlock()
		s.engine.reporter.OnProgress(progress)
	}
}

// agentTrace is the append-only pipeline trace.
type agentTrace struct {
	mu     sync.Mutex
	record []AgentEvent
}

func newAgentTrace() *agentTrace {
	return &agentTrace{}
}

func (t *agentTrace) add(agent string, typ AgentEventType, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record = append(t.record, AgentEvent{
		AgentName: agent,
		Type:      typ,
		Content:   content,
		Timestamp: time.Now(),
	})
}

func (t *agentTrace) events() []AgentEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]AgentEvent, len(t.record))
	copy(out, t.record)
	return out
}

// decodeJSON extracts the outermost JSON object from a reasoning response
// and unmarshals it into v. Model output often wraps JSON in prose or code
// fences, so everything outside the first and last brace is discarded.
func decodeJSON(raw string, v any) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to parse reasoning response: %w", err)
	}
	return nil
}
