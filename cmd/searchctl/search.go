package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noa10/mataresit-sub011/internal/app"
	"github.com/noa10/mataresit-sub011/internal/domain"
	chiTransport "github.com/noa10/mataresit-sub011/internal/transport/chi"
	"github.com/noa10/mataresit-sub011/pkg/api"
	"github.com/noa10/mataresit-sub011/pkg/client"
)

type searchOptions struct {
	server      string
	apiKey      string
	userID      string
	teamID      string
	from        string
	to          string
	minAmount   float64
	maxAmount   float64
	statuses    []string
	sourceTypes []string
	limit       int
	offset      int
	diversity   string
	threshold   float64
}

func newSearchCmd(g *globalOptions) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search receipts and documents",
		Long: `Runs the hybrid search pipeline for one query.
With --server the query goes to a running service; otherwise the pipeline runs
in-process against the datastore named in the config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if len(args) == 1 {
				text = args[0]
			}
			req, err := opts.request(cmd, text)
			if err != nil {
				return err
			}

			var resp api.SearchResponse
			if opts.server != "" {
				resp, err = opts.remote(cmd.Context(), req)
			} else {
				resp, err = opts.local(cmd.Context(), g, req)
			}
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if g.json {
				return outputJSON(cmd, resp)
			}
			outputTable(cmd, &resp)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "", "base URL of a running search service")
	f.StringVar(&opts.apiKey, "api-key", "", "bearer token for --server")
	f.StringVar(&opts.userID, "user", "", "user ID the search runs for")
	f.StringVar(&opts.teamID, "team", "", "team ID the search runs for")
	f.StringVar(&opts.from, "from", "", "earliest entity date (YYYY-MM-DD)")
	f.StringVar(&opts.to, "to", "", "latest entity date (YYYY-MM-DD)")
	f.Float64Var(&opts.minAmount, "min", 0, "minimum total")
	f.Float64Var(&opts.maxAmount, "max", 0, "maximum total")
	f.StringSliceVar(&opts.statuses, "status", nil, "allowed statuses")
	f.StringSliceVar(&opts.sourceTypes, "source-type", nil, "allowed source types")
	f.IntVarP(&opts.limit, "limit", "n", 10, "maximum number of results")
	f.IntVar(&opts.offset, "offset", 0, "result offset")
	f.StringVar(&opts.diversity, "diversity", "", "ordering: relevance, recency or diversity")
	f.Float64Var(&opts.threshold, "threshold", 0, "minimum similarity (0 keeps the server default)")
	return cmd
}

func (o *searchOptions) request(cmd *cobra.Command, text string) (api.SearchRequest, error) {
	if o.userID == "" && o.teamID == "" {
		return api.SearchRequest{}, errors.New("--user or --team is required")
	}

	b := client.NewSearch(text).Limit(o.limit).Offset(o.offset)
	from, err := parseDate("from", o.from)
	if err != nil {
		return api.SearchRequest{}, err
	}
	to, err := parseDate("to", o.to)
	if err != nil {
		return api.SearchRequest{}, err
	}
	if !from.IsZero() || !to.IsZero() {
		b.Between(from, to)
	}
	if cmd.Flags().Changed("min") {
		b.AmountAtLeast(o.minAmount)
	}
	if cmd.Flags().Changed("max") {
		b.AmountAtMost(o.maxAmount)
	}
	if len(o.statuses) > 0 {
		b.Statuses(o.statuses...)
	}
	if len(o.sourceTypes) > 0 {
		b.SourceTypes(o.sourceTypes...)
	}
	if o.diversity != "" {
		b.Diversity(o.diversity)
	}
	if cmd.Flags().Changed("threshold") {
		b.Threshold(o.threshold)
	}
	return b.Request(), nil
}

func (o *searchOptions) remote(ctx context.Context, req api.SearchRequest) (api.SearchResponse, error) {
	c, err := client.New(o.server, client.WithAPIKey(o.apiKey), client.WithIdentity(o.userID, o.teamID))
	if err != nil {
		return api.SearchResponse{}, err
	}
	return c.Search(ctx, req)
}

func (o *searchOptions) local(
	ctx context.Context, g *globalOptions, req api.SearchRequest,
) (api.SearchResponse, error) {
	cfg, logger, err := g.load()
	if err != nil {
		return api.SearchResponse{}, err
	}
	defer func() { _ = logger.Sync() }()

	q, err := chiTransport.QueryFromAPI(&req, domain.Scope{UserID: o.userID, TeamID: o.teamID}, app.QueryDefaults(&cfg))
	if err != nil {
		return api.SearchResponse{}, err
	}

	a, err := app.Build(ctx, &cfg, logger)
	if err != nil {
		return api.SearchResponse{}, err
	}
	defer a.Close()

	resp, err := a.Orchestrator.Search(ctx, q)
	if err != nil {
		return api.SearchResponse{}, err
	}
	return chiTransport.ResponseToAPI(&resp), nil
}

func parseDate(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", name, err)
	}
	return t, nil
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputTable(cmd *cobra.Command, resp *api.SearchResponse) {
	if resp.Answer.Text != "" {
		cmd.Println(resp.Answer.Text)
	}
	m := resp.Metadata
	cmd.Printf("method=%s strategy=%s fallback=%t confidence=%s total=%d\n",
		m.Method, m.Strategy, m.FallbackUsed, m.Confidence, resp.Total)

	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return
	}

	cmd.Println()
	for i := range resp.Results {
		r := &resp.Results[i]
		title := r.Title
		if title == "" {
			title = r.SourceType + ":" + r.SourceID
		}
		marker := ""
		if r.Score.ExactMatch {
			marker = " *"
		}
		cmd.Printf("  [%d] %s (%.3f)%s\n", r.Position, title, r.Score.Combined, marker)
		var details []string
		if v, ok := r.Metadata["merchant"].(string); ok && v != "" {
			details = append(details, v)
		}
		if v, ok := r.Metadata["total"].(float64); ok {
			details = append(details, fmt.Sprintf("%.2f", v))
		}
		if v, ok := r.Metadata["date"].(string); ok && v != "" {
			details = append(details, v)
		}
		if len(details) > 0 {
			cmd.Printf("      %s\n", strings.Join(details, " | "))
		}
	}
}
