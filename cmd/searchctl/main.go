// Command searchctl runs searches against a corpus without the HTTP
// service, for tuning ranking weights and inspecting match reasons.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/article-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/article-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/article-search/pkg/logger"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) *cli.App {
	queryFlags := []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Page size (0 uses search.defaultLimit)",
		},
		&cli.IntFlag{
			Name:  "offset",
			Usage: "Number of ranked articles to skip",
		},
		&cli.BoolFlag{
			Name:  "ai",
			Usage: "Ask the query enhancer to widen the query",
		},
	}
	return &cli.App{
		Name:      "searchctl",
		Usage:     "Rank articles for a query and explain the scores",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the service config file",
			},
			&cli.StringFlag{
				Name:  "corpus",
				Usage: "YAML corpus file; overrides the configured corpus source",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: func(c *cli.Context) error {
			logger.SetupWriter(c.App.ErrWriter, c.String("log-level"), "text")
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "search",
				Usage:     "Print the ranked page as JSON",
				ArgsUsage: "<query>",
				Flags:     queryFlags,
				Action:    searchCommand,
			},
			{
				Name:      "explain",
				Usage:     "Print each ranked article with its score and match reasons",
				ArgsUsage: "<query>",
				Flags:     queryFlags,
				Action:    explainCommand,
			},
			{
				Name:  "load",
				Usage: "Drive a running search service with concurrent queries and report latency",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Usage: "Base URL of the search service", Value: "http://localhost:8080"},
					&cli.IntFlag{Name: "concurrency", Usage: "Number of concurrent workers", Value: 10},
					&cli.DurationFlag{Name: "duration", Usage: "Test duration", Value: 30 * time.Second},
					&cli.IntFlag{Name: "limit", Usage: "Page size sent with each query"},
					&cli.BoolFlag{Name: "ai", Usage: "Send useAI=true"},
					&cli.StringSliceFlag{Name: "query", Aliases: []string{"q"}, Usage: "Query to send (repeatable)"},
				},
				Action: loadCommand,
			},
			{
				Name:  "notify",
				Usage: "Publish an article change so running search instances flush their caches",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "article", Usage: "Changed article id"},
					&cli.StringFlag{Name: "category", Usage: "Changed category id"},
					&cli.StringFlag{Name: "action", Usage: "created, updated, published, unpublished or deleted", Value: "updated"},
				},
				Action: notifyCommand,
			},
		},
	}
}

func searchCommand(c *cli.Context) error {
	resp, err := runQuery(c)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func explainCommand(c *cli.Context) error {
	resp, err := runQuery(c)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	if resp.EnhancedQuery != "" {
		fmt.Fprintf(w, "enhanced query:\t%s\n", resp.EnhancedQuery)
		fmt.Fprintf(w, "related terms:\t%s\n", strings.Join(resp.RelatedTerms, ", "))
	}
	fmt.Fprintf(w, "total:\t%d\n\n", resp.Total)
	fmt.Fprintln(w, "RANK\tID\tSCORE\tTITLE\tREASONS")
	for i, m := range resp.Matches {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			c.Int("offset")+i+1,
			m.ArticleID,
			m.Score,
			resp.Articles[i].Title,
			strings.Join(m.Reasons, " "),
		)
	}
	return w.Flush()
}

func runQuery(c *cli.Context) (*executor.Response, error) {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("a query is required")
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if path := c.String("corpus"); path != "" {
		cfg.Corpus = config.CorpusConfig{Source: "file", FilePath: path}
	}

	ctx := context.Background()
	source, closeSource, err := corpus.Open(ctx, cfg.Corpus, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	defer closeSource()

	var enh enhancer.Enhancer = enhancer.Disabled{}
	if c.Bool("ai") && cfg.Enhancer.Enabled {
		llm, err := enhancer.NewLLM(cfg.Enhancer)
		if err != nil {
			return nil, err
		}
		enh = llm
	}

	exec, err := executor.New(source, enh, cfg.Search, cfg.Ranking)
	if err != nil {
		return nil, err
	}
	defer exec.Close()

	limit := c.Int("limit")
	if limit <= 0 {
		limit = cfg.Search.DefaultLimit
	}
	return exec.Search(ctx, executor.Request{
		Query:  query,
		Limit:  min(limit, cfg.Search.MaxResults),
		Offset: max(c.Int("offset"), 0),
		UseAI:  c.Bool("ai"),
	})
}
