package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/database"
	"github.com/mikeboe/deep-research/pkg/embeddings"
	"github.com/mikeboe/deep-research/pkg/vectorstore"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"
)

// FindingsToolset exposes the archived research findings to the follow-up
// assistant: semantic search, per-source lookup and the citation list.
type FindingsToolset struct {
	DB       *database.PostgresDB
	Embedder *embeddings.GoogleEmbedder
	config   *config.Config
}

func NewFindingsToolset(db *database.PostgresDB, embedder *embeddings.GoogleEmbedder, config *config.Config) *FindingsToolset {
	return &FindingsToolset{
		DB:       db,
		Embedder: embedder,
		config:   config,
	}
}

func (t *FindingsToolset) Name() string {
	return "findings_tools"
}

func (t *FindingsToolset) Tools(ctx agent.ReadonlyContext) ([]tool.Tool, error) {
	searchTool, err := functiontool.New[SearchFindingsArgs, SearchFindingsResp](
		functiontool.Config{
			Name:        "search_findings",
			Description: "Search archived research findings using semantic search.",
		},
		t.searchFindingsTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create search tool: %w", err)
	}

	bySourceTool, err := functiontool.New[FindSourceArgs, FindSourceResp](
		functiontool.Config{
			Name:        "find_findings_by_source",
			Description: "Return every archived finding for a specific source URL.",
		},
		t.findBySourceTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create find_by_source tool: %w", err)
	}

	citationsTool, err := functiontool.New[ListCitationsArgs, ListCitationsResp](
		functiontool.Config{
			Name:        "list_citations",
			Description: "List every archived source with its citation number.",
		},
		t.listCitationsTool,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create list_citations tool: %w", err)
	}

	return []tool.Tool{searchTool, bySourceTool, citationsTool}, nil
}

// --- Tool Implementations ---

type SearchFindingsArgs struct {
	Query  string `json:"query" description:"The search query"`
	TopK   int    `json:"topK,omitempty" description:"Number of results to return (default 5)"`
	Source string `json:"source,omitempty" description:"Optional source URL filter"`
}

type SearchFindingsResp struct {
	Results string `json:"results"`
}

func (t *FindingsToolset) searchFindingsTool(ctx tool.Context, args SearchFindingsArgs) (SearchFindingsResp, error) {
	return t.SearchFindings(ctx, args)
}

func (t *FindingsToolset) SearchFindings(ctx context.Context, args SearchFindingsArgs) (SearchFindingsResp, error) {
	if args.TopK == 0 {
		args.TopK = 5
	}

	slog.Info("Search findings", "query", args.Query, "topK", args.TopK, "source", args.Source)

	queryEmbedding, err := t.Embedder.EmbedText(ctx, args.Query)
	if err != nil {
		return SearchFindingsResp{}, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	store, err := vectorstore.NewFindingsStore(t.DB.Pool, t.config.CollectionName)
	if err != nil {
		return SearchFindingsResp{}, fmt.Errorf("invalid collection name: %w", err)
	}

	hits, err := store.SimilaritySearch(ctx, queryEmbedding, args.TopK, args.Source)
	if err != nil {
		return SearchFindingsResp{}, fmt.Errorf("failed to search: %w", err)
	}

	var formatted []string
	for _, hit := range hits {
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%d] %s\n[Source]: %s", hit.Record.CitationID, hit.Record.Content, hit.Record.Source)
		if hit.Record.Confidence != "" {
			fmt.Fprintf(&sb, "\n[Confidence]: %s", hit.Record.Confidence)
		}
		formatted = append(formatted, sb.String())
	}

	return SearchFindingsResp{Results: strings.Join(formatted, "\n\n")}, nil
}

type FindSourceArgs struct {
	Source string `json:"source" description:"The source URL to find findings for"`
}

type FindSourceResp struct {
	Content string `json:"content"`
}

func (t *FindingsToolset) findBySourceTool(ctx tool.Context, args FindSourceArgs) (FindSourceResp, error) {
	return t.FindBySource(ctx, args)
}

func (t *FindingsToolset) FindBySource(ctx context.Context, args FindSourceArgs) (FindSourceResp, error) {
	store, err := vectorstore.NewFindingsStore(t.DB.Pool, t.config.CollectionName)
	if err != nil {
		return FindSourceResp{}, fmt.Errorf("invalid collection name: %w", err)
	}

	records, err := store.GetBySource(ctx, args.Source)
	if err != nil {
		return FindSourceResp{}, fmt.Errorf("failed to find findings: %w", err)
	}

	var formatted []string
	for _, r := range records {
		formatted = append(formatted, fmt.Sprintf("[%d] %s", r.CitationID, r.Content))
	}

	return FindSourceResp{Content: strings.Join(formatted, "\n\n")}, nil
}

type ListCitationsArgs struct{}

type ListCitationsResp struct {
	Citations string `json:"citations"`
}

func (t *FindingsToolset) listCitationsTool(ctx tool.Context, args ListCitationsArgs) (ListCitationsResp, error) {
	return t.ListCitations(ctx, args)
}

func (t *FindingsToolset) ListCitations(ctx context.Context, _ ListCitationsArgs) (ListCitationsResp, error) {
	store, err := vectorstore.NewFindingsStore(t.DB.Pool, t.config.CollectionName)
	if err != nil {
		return ListCitationsResp{}, fmt.Errorf("invalid collection name: %w", err)
	}

	sources, err := store.ListSources(ctx)
	if err != nil {
		return ListCitationsResp{}, fmt.Errorf("failed to list sources: %w", err)
	}

	return ListCitationsResp{Citations: formatCitations(sources)}, nil
}

// formatCitations renders the bibliography one "[N] url" line per source,
// preserving citation order.
func formatCitations(sources []vectorstore.SourceCitation) string {
	var formatted []string
	for _, sc := range sources {
		formatted = append(formatted, fmt.Sprintf("[%d] %s", sc.CitationID, sc.Source))
	}
	return strings.Join(formatted, "\n")
}
