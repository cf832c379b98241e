package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/splitter"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
)

// Service owns the research job lifecycle: creation, background execution,
// persistence and findings archival.
type Service struct {
	DB        *database.PostgresDB
	Cfg       *config.Config
	Searcher  research.Searcher
	Extractor research.Extractor
	Reasoner  research.Reasoner
	Embedder  *embeddings.GoogleEmbedder
}

func NewService(db *database.PostgresDB, cfg *config.Config, searcher research.Searcher, extractor research.Extractor, reasoner research.Reasoner, embedder *embeddings.GoogleEmbedder) *Service {
	return &Service{
		DB:        db,
		Cfg:       cfg,
		Searcher:  searcher,
		Extractor: extractor,
		Reasoner:  reasoner,
		Embedder:  embedder,
	}
}

type Job struct {
	ID         uuid.UUID       `json:"id"`
	Query      string          `json:"query"`
	Status     string          `json:"status"`
	Brief      *string         `json:"brief,omitempty"`
	Report     *string         `json:"report,omitempty"`
	Citations  json.RawMessage `json:"citations,omitempty"`
	Findings   json.RawMessage `json:"findings,omitempty"`
	Questions  json.RawMessage `json:"questions,omitempty"`
	Terminated *string         `json:"terminated,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Config     json.RawMessage `json:"config"`
}

type CreateJobRequest struct {
	Query                string            `json:"query"`
	ClarificationAnswers map[string]string `json:"clarification_answers,omitempty"`
}

// NewEngine builds a research engine bound to the given reporter. Engines
// are cheap; each session gets its own so reporters never cross sessions.
func (s *Service) NewEngine(reporter research.Reporter, logger *slog.Logger) (*research.Engine, error) {
	return research.NewEngine(research.Config{
		MaxDepth:  s.Cfg.MaxDepth,
		TimeLimit: s.Cfg.TimeLimit,
	}, research.Deps{
		Searcher:  s.Searcher,
		Extractor: s.Extractor,
		Reasoner:  s.Reasoner,
		Reporter:  reporter,
		Logger:    logger,
	})
}

func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (*Job, error) {
	configJSON, _ := json.Marshal(map[string]interface{}{
		"max_depth":          s.Cfg.MaxDepth,
		"time_limit_seconds": int(s.Cfg.TimeLimit.Seconds()),
		"collection":         s.Cfg.CollectionName,
	})

	jobID := uuid.New()
	query := `
		INSERT INTO research_jobs (id, query, status, config)
		VALUES ($1, $2, 'pending', $3)
		RETURNING id, query, status, created_at, updated_at
	`

	job := &Job{}
	err := s.DB.Pool.QueryRow(ctx, query, jobID, req.Query, configJSON).Scan(
		&job.ID, &job.Query, &job.Status, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	go s.runWorker(job.ID, req)

	return job, nil
}

func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	query := `
		SELECT id, query, status, brief, report, citations, findings, questions, terminated, created_at, updated_at, config
		FROM research_jobs
		WHERE id = $1
	`
	job := &Job{}
	err := s.DB.Pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.Query, &job.Status, &job.Brief, &job.Report, &job.Citations, &job.Findings,
		&job.Questions, &job.Terminated, &job.CreatedAt, &job.UpdatedAt, &job.Config,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	query := `
		SELECT id, query, status, brief, report, citations, findings, questions, terminated, created_at, updated_at, config
		FROM research_jobs
		ORDER BY created_at DESC
		LIMIT 50
	`
	rows, err := s.DB.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Query, &job.Status, &job.Brief, &job.Report, &job.Citations, &job.Findings,
			&job.Questions, &job.Terminated, &job.CreatedAt, &job.UpdatedAt, &job.Config); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

type LogEntry struct {
	ID        int             `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     string          `json:"level"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (s *Service) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]LogEntry, error) {
	query := `
		SELECT id, timestamp, level, message, metadata
		FROM research_logs
		WHERE job_id = $1
		ORDER BY id ASC
	`
	rows, err := s.DB.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get logs: %w", err)
	}
	defer rows.Close()

	var logs []LogEntry
	for rows.Next() {
		var l LogEntry
		if err := rows.Scan(&l.ID, &l.Timestamp, &l.Level, &l.Message, &l.Metadata); err != nil {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}

// runWorker executes one research session in the background and persists
// every outcome, including clarification short-circuits and partial results
// after a fatal synthesis failure.
func (s *Service) runWorker(jobID uuid.UUID, req CreateJobRequest) {
	ctx := context.Background()

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'running', updated_at = NOW() WHERE id = $1", jobID)

	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID))

	engine, err := s.NewEngine(&logReporter{logger: dbLogger}, dbLogger)
	if err != nil {
		s.failJob(ctx, jobID, fmt.Sprintf("Failed to init engine: %v", err))
		return
	}

	result, err := engine.Run(ctx, research.Request{
		Query:                req.Query,
		ClarificationAnswers: req.ClarificationAnswers,
	})

	if result != nil && result.NeedsClarification {
		questionsJSON, _ := json.Marshal(result.Questions)
		_, _ = s.DB.Pool.Exec(ctx,
			"UPDATE research_jobs SET status = 'needs_clarification', questions = $2, updated_at = NOW() WHERE id = $1",
			jobID, questionsJSON)
		return
	}

	if err != nil {
		// Synthesis failures still carry accumulated findings; persist them
		// so the caller can show raw findings without a narrative.
		if result != nil {
			citationsJSON, _ := json.Marshal(result.Citations)
			findingsJSON, _ := json.Marshal(result.Findings)
			_, _ = s.DB.Pool.Exec(ctx,
				"UPDATE research_jobs SET citations = $2, findings = $3, terminated = $4 WHERE id = $1",
				jobID, citationsJSON, findingsJSON, string(result.Terminated))
		}
		s.failJob(ctx, jobID, fmt.Sprintf("Research failed: %v", err))
		return
	}

	citationsJSON, _ := json.Marshal(result.Citations)
	findingsJSON, _ := json.Marshal(result.Findings)

	_, err = s.DB.Pool.Exec(ctx,
		"UPDATE research_jobs SET status = 'completed', brief = $2, report = $3, citations = $4, findings = $5, terminated = $6, updated_at = NOW() WHERE id = $1",
		jobID, result.Brief, result.Report, citationsJSON, findingsJSON, string(result.Terminated))
	if err != nil {
		dbLogger.Error("Failed to save final report to DB", "error", err)
	}

	if err := s.ArchiveFindings(ctx, jobID, result); err != nil {
		dbLogger.Error("Failed to archive findings", "error", err)
	}
}

func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, reason string) {
	dbLogger := slog.New(NewDBLogHandler(s.DB, jobID))
	dbLogger.Error(reason)

	_, _ = s.DB.Pool.Exec(ctx, "UPDATE research_jobs SET status = 'failed', updated_at = NOW() WHERE id = $1", jobID)
}

// ArchiveFindings chunks, embeds and stores a completed session's findings
// so the follow-up assistant can query them later. Archival is best-effort
// and never fails the job.
func (s *Service) ArchiveFindings(ctx context.Context, jobID uuid.UUID, result *research.Result) error {
	if s.Embedder == nil || len(result.Findings) == 0 {
		return nil
	}

	// Validates the collection name before it is interpolated into DDL.
	store, err := vectorstore.NewFindingsStore(s.DB.Pool, s.Cfg.CollectionName)
	if err != nil {
		return fmt.Errorf("invalid collection name: %w", err)
	}

	if err := s.DB.EnsureVectorExtension(ctx); err != nil {
		return fmt.Errorf("failed to ensure vector extension: %w", err)
	}
	if err := s.DB.CreateFindingsTable(ctx, s.Cfg.CollectionName, embeddings.Dimension); err != nil {
		return fmt.Errorf("failed to create findings table: %w", err)
	}

	citationIDs, _ := research.AssignCitations(result.Findings)
	split := splitter.NewRecursiveCharacter(s.Cfg.ChunkSize, s.Cfg.ChunkOverlap)

	var records []vectorstore.FindingRecord
	var texts []string
	for _, f := range result.Findings {
		chunks, err := split.SplitText(f.Text)
		if err != nil {
			return fmt.Errorf("failed to split finding: %w", err)
		}
		for _, chunk := range chunks {
			records = append(records, vectorstore.FindingRecord{
				JobID:      jobID.String(),
				Content:    chunk,
				Source:     f.Source,
				CitationID: citationIDs[f.Source],
				Confidence: string(f.Confidence),
			})
			texts = append(texts, chunk)
		}
	}

	vectors, err := s.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed findings: %w", err)
	}
	for i := range records {
		records[i].Embedding = vectors[i]
	}

	return store.Add(ctx, records)
}

// logReporter forwards engine events to the job's structured log.
type logReporter struct {
	logger *slog.Logger
}

func (r *logReporter) OnActivity(e research.ActivityEvent) {
	r.logger.Info(e.Message, "type", string(e.Type), "status", string(e.Status), "depth", e.Depth)
}

func (r *logReporter) OnSource(src research.Source) {
	r.logger.Info("source discovered", "url", src.URL, "title", src.Title)
}

func (r *logReporter) OnProgress(p research.Progress) {
	r.logger.Debug("progress", "completed", p.CompletedSteps, "total", p.TotalSteps)
}
