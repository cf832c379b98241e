package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mikeboe/deep-research/pkg/clients"
	"github.com/mikeboe/deep-research/pkg/config"
	"github.com/mikeboe/deep-research/pkg/research"
	"github.com/mikeboe/deep-research/pkg/research/tools"
	"github.com/spf13/cobra"
)

var (
	query     string
	outputDir string
)

// consoleReporter prints engine events to stdout as they happen.
type consoleReporter struct{}

func (consoleReporter) OnActivity(e research.ActivityEvent) {
	marker := " "
	switch e.Status {
	case research.StatusComplete:
		marker = "+"
	case research.StatusError:
		marker = "!"
	}
	fmt.Printf("[%s] d%d %-9s %s\n", marker, e.Depth, e.Type, e.Message)
}

func (consoleReporter) OnSource(src research.Source) {
	fmt.Printf("    source: %s\n", src.URL)
}

func (consoleReporter) OnProgress(p research.Progress) {}

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "deep-research",
		Short: "A terminal-based deep research agent",
		Long:  `deep-research runs an autonomous research session: it triages the query, asks clarifying questions when the query is too vague, then iterates a search-extract-analyze loop until the topic is covered and writes a cited report.`,
		Run: func(cmd *cobra.Command, args []string) {
			reader := bufio.NewReader(os.Stdin)

			if !cmd.Flags().Changed("query") {
				fmt.Print("Enter research query: ")
				input, _ := reader.ReadString('\n')
				query = strings.TrimSpace(input)
			}
			if query == "" {
				slog.Error("Query cannot be empty")
				os.Exit(1)
			}

			ctx := context.Background()

			llm, err := clients.GoogleAi(ctx, cfg.GoogleApiKey, cfg.ReasoningModel)
			if err != nil {
				slog.Error("Failed to init LLM client", "error", err)
				os.Exit(1)
			}

			engine, err := research.NewEngine(research.Config{
				MaxDepth:  cfg.MaxDepth,
				TimeLimit: cfg.TimeLimit,
			}, research.Deps{
				Searcher:  tools.NewWebSearchClient(cfg.SearchApiURL, cfg.SearchApiKey),
				Extractor: tools.NewExtractClient(cfg.ExtractApiURL, cfg.ExtractApiKey),
				Reasoner:  clients.NewLLMReasoner(llm, slog.Default()),
				Reporter:  consoleReporter{},
			})
			if err != nil {
				slog.Error("Error initializing engine", "error", err)
				os.Exit(1)
			}

			req := research.Request{Query: query}

			result, err := engine.Run(ctx, req)
			if err == nil && result.NeedsClarification {
				// Collect answers on the terminal and run again.
				fmt.Println("\nA few questions before researching:")
				answers := make(map[string]string, len(result.Questions))
				for _, q := range result.Questions {
					fmt.Printf("  %s\n  > ", q)
					input, _ := reader.ReadString('\n')
					if a := strings.TrimSpace(input); a != "" {
						answers[q] = a
					}
				}
				req.ClarificationAnswers = answers
				result, err = engine.Run(ctx, req)
			}
			if err != nil {
				slog.Error("Research failed", "error", err)
				if result != nil && len(result.Findings) > 0 {
					fmt.Printf("\n%d findings were collected before the failure:\n\n", len(result.Findings))
					for _, f := range result.Findings {
						fmt.Printf("- %s (%s)\n", f.Text, f.Source)
					}
				}
				os.Exit(1)
			}

			ts := time.Now().Format("20060102_150405")
			reportPath := fmt.Sprintf("%s/report_%s.md", outputDir, ts)
			if err := os.WriteFile(reportPath, []byte(result.Report), 0o644); err != nil {
				slog.Error("Failed to write report", "error", err)
				os.Exit(1)
			}

			citationsPath := fmt.Sprintf("%s/citations_%s.json", outputDir, ts)
			if data, err := json.MarshalIndent(result.Citations, "", "  "); err == nil {
				if err := os.WriteFile(citationsPath, data, 0o644); err != nil {
					slog.Error("Failed to write citations", "error", err)
				}
			}

			fmt.Printf("\nReport written to %s (%d citations, terminated: %s)\n",
				reportPath, len(result.Citations), result.Terminated)
		},
	}

	rootCmd.Flags().StringVarP(&query, "query", "q", "", "The research query")
	rootCmd.Flags().StringVarP(&outputDir, "out", "o", ".", "Directory for the report and citations files")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
