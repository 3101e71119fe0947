// facet-inspect runs the facet engine from the command line against a
// fixture file or a live Elasticsearch cluster. The explain command prints
// the display filter decision for every candidate term, which is how the
// filter thresholds are checked against real data.
//
// Usage:
//
//	go run ./scripts/facet-inspect --fixture pkg/fixtures/testdata/catalog.yaml explain tissue
//	go run ./scripts/facet-inspect load tissue --select organisms=<id> --search lung
//	go run ./scripts/facet-inspect seed pkg/fixtures/testdata/catalog.yaml
//
// Without --fixture, settings come from config.yaml and the environment as
// for the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DeplanckeLab/scfair/pkg/app"
	"github.com/DeplanckeLab/scfair/pkg/catalog"
	"github.com/DeplanckeLab/scfair/pkg/config"
	"github.com/DeplanckeLab/scfair/pkg/facets"
	"github.com/DeplanckeLab/scfair/pkg/fixtures"
	"github.com/DeplanckeLab/scfair/pkg/models"
	"github.com/DeplanckeLab/scfair/pkg/search"
)

func main() {
	if err := rootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath string
	fixture    string
	search     string
	selections []string
	outputJSON bool
	verbose    bool
	timeout    time.Duration
}

func rootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "facet-inspect",
		Short: "Inspect facet trees and display filter decisions",
		Long: `Run facet operations from the command line.

Categories:
  ` + strings.Join(categoryKeys(), ", ") + `

Selections use the HTTP parameter names, e.g. --select tissues=<term-id>.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "config.yaml", "Config file")
	flags.StringVar(&opts.fixture, "fixture", "", "Serve from this fixture with the in-memory backend")
	flags.StringVar(&opts.search, "search", "", "Free-text dataset search")
	flags.StringArrayVar(&opts.selections, "select", nil, "Selection as param=id (repeatable)")
	flags.BoolVar(&opts.outputJSON, "json", false, "Output JSON")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log engine activity to stderr")
	flags.DurationVar(&opts.timeout, "timeout", time.Minute, "Overall timeout")

	cmd.AddCommand(
		loadCmd(opts, out),
		childrenCmd(opts, out),
		searchCmd(opts, out),
		explainCmd(opts, out),
		seedCmd(opts, out),
	)
	return cmd
}

func categoryKeys() []string {
	var keys []string
	for _, c := range catalog.All() {
		keys = append(keys, c.Key)
	}
	return keys
}

// ============================================================================
// Commands
// ============================================================================

func loadCmd(opts *options, out io.Writer) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "load <category>",
		Short: "Load the top-level nodes of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), opts, func(ctx context.Context, engine *app.App, params models.FacetParams) error {
				page, err := engine.FacetService.LoadFacet(ctx, args[0], params, limit, offset)
				if err != nil {
					return err
				}
				if opts.outputJSON {
					return writeJSON(out, page)
				}
				printNodes(out, page.Nodes)
				if page.Pagination != nil {
					p := page.Pagination
					fmt.Fprintf(out, "\n%d-%d of %d (more: %v)\n", p.Offset+1, p.Offset+len(page.Nodes), p.Total, p.HasMore)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 30, "Page size (0 disables pagination)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Page offset")
	return cmd
}

func childrenCmd(opts *options, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "children <category> <parent-id>",
		Short: "Load the visible children of a term",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), opts, func(ctx context.Context, engine *app.App, params models.FacetParams) error {
				nodes, err := engine.FacetService.LoadChildren(ctx, args[0], args[1], params)
				if err != nil {
					return err
				}
				if opts.outputJSON {
					return writeJSON(out, nodes)
				}
				printNodes(out, nodes)
				return nil
			})
		},
	}
}

func searchCmd(opts *options, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "search <category> <term>",
		Short: "Search term names within a category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), opts, func(ctx context.Context, engine *app.App, params models.FacetParams) error {
				nodes, err := engine.FacetService.SearchWithin(ctx, args[0], args[1], params)
				if err != nil {
					return err
				}
				if opts.outputJSON {
					return writeJSON(out, nodes)
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tCOUNT\tIDENTIFIER\tDIRECT\tID")
				for _, n := range nodes {
					fmt.Fprintf(w, "%s%s\t%d\t%s\t%v\t%s\n", strings.Repeat("  ", n.Depth), n.Name, n.Count, n.Identifier, n.IsDirect, n.ID)
				}
				return w.Flush()
			})
		},
	}
}

func explainCmd(opts *options, out io.Writer) *cobra.Command {
	var keptOnly bool
	cmd := &cobra.Command{
		Use:   "explain <category>",
		Short: "Print the display filter decision for every candidate term",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), opts, func(ctx context.Context, engine *app.App, params models.FacetParams) error {
				decisions, err := engine.FacetService.ExplainFacet(ctx, args[0], params)
				if err != nil {
					return err
				}
				if keptOnly {
					decisions = kept(decisions)
				}
				if opts.outputJSON {
					return writeJSON(out, decisions)
				}
				printDecisions(out, decisions)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keptOnly, "kept", false, "Only show terms that became visible roots")
	return cmd
}

func seedCmd(opts *options, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Create the indices and load a fixture into Elasticsearch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(opts.configPath, "facet-inspect")
			if err != nil {
				return err
			}
			f, err := fixtures.Load(args[0])
			if err != nil {
				return err
			}
			logger := newLogger(opts.verbose)
			es, err := search.NewElasticsearchClient(&cfg.Elasticsearch, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			datasets, ontology := cfg.Elasticsearch.DatasetsIndex, cfg.Elasticsearch.OntologyIndex
			if err := es.CreateIndex(ctx, ontology, fixtures.OntologyMapping()); err != nil {
				return err
			}
			if err := es.CreateIndex(ctx, datasets, fixtures.DatasetsMapping()); err != nil {
				return err
			}
			result, err := fixtures.Seed(f, es, datasets, ontology, logger)
			if err != nil {
				return err
			}
			if err := es.Refresh(ctx, ontology, datasets); err != nil {
				return err
			}
			fmt.Fprintf(out, "Indexed %d terms into %s and %d datasets into %s\n", result.Terms, ontology, result.Datasets, datasets)
			return nil
		},
	}
}

// ============================================================================
// Helpers
// ============================================================================

// withEngine builds the engine for one command and runs fn with the parsed
// selections.
func withEngine(parent context.Context, opts *options, fn func(context.Context, *app.App, models.FacetParams) error) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, opts.timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	params, err := parseSelections(opts.search, opts.selections)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	engine, err := app.New(ctx, cfg, newLogger(opts.verbose))
	if err != nil {
		return err
	}
	defer engine.Close()
	return fn(ctx, engine, params)
}

func loadConfig(opts *options) (*config.Config, error) {
	if opts.fixture != "" {
		_ = os.Setenv("SEARCH_BACKEND", config.BackendMemory)
		_ = os.Setenv("SEARCH_FIXTURE_PATH", opts.fixture)
		_ = os.Setenv("ONTOLOGY_SOURCE", config.OntologySourceSearch)
	}
	return config.LoadFile(opts.configPath, "facet-inspect")
}

// parseSelections turns param=id flags into FacetParams keyed by category.
func parseSelections(text string, selections []string) (models.FacetParams, error) {
	params := models.FacetParams{Search: text}
	for _, s := range selections {
		param, id, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return models.FacetParams{}, fmt.Errorf("selection %q is not param=id", s)
		}
		c, found := catalog.ByParamKey(strings.TrimSuffix(strings.TrimSpace(param), "[]"))
		if !found {
			if c, found = catalog.Find(strings.TrimSpace(param)); !found {
				return models.FacetParams{}, fmt.Errorf("unknown selection parameter %q", param)
			}
		}
		params = params.WithSelection(c.Key, strings.TrimSpace(id))
	}
	return params, nil
}

func kept(decisions []facets.Decision) []facets.Decision {
	out := make([]facets.Decision, 0, len(decisions))
	for _, d := range decisions {
		if d.Kept {
			out = append(out, d)
		}
	}
	return out
}

func printNodes(out io.Writer, nodes []models.FacetNode) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOUNT\tCHILDREN\tSELECTED BELOW\tID")
	for _, n := range nodes {
		fmt.Fprintf(w, "%s\t%d\t%v\t%v\t%s\n", n.Name, n.Count, n.HasChildren, n.HasSelectedChildren, n.ID)
	}
	_ = w.Flush()
}

func printDecisions(out io.Writer, decisions []facets.Decision) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tNAME\tDIRECT\tANCESTOR\tREASON\tID")
	roots := 0
	for _, d := range decisions {
		if d.Kept {
			roots++
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n", d.Stage, d.Name, d.Direct, d.Ancestor, d.Reason, d.ID)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\n%d candidates, %d visible roots\n", len(decisions), roots)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	logConfig := zap.NewDevelopmentConfig()
	logConfig.OutputPaths = []string{"stderr"}
	logger, err := logConfig.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
