// Package main provides the nornicorpus CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nornicorpus/nornicorpus/internal/config"
	"github.com/nornicorpus/nornicorpus/internal/executor"
	"github.com/nornicorpus/nornicorpus/internal/graph"
	"github.com/nornicorpus/nornicorpus/internal/logging"
	"github.com/nornicorpus/nornicorpus/internal/manager"
	"github.com/nornicorpus/nornicorpus/internal/planner"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nornicorpus",
		Short: "nornicorpus - a linguistic corpus graph query engine",
		Long: `nornicorpus stores linguistic corpora as annotation graphs and
answers AQL-shaped structural queries over them.

Features:
  • Dictionary-encoded annotation storage with pluggable graph-storage
    strategies (adjacency list, linear, pre/post order)
  • An operator algebra (dominance, pointing, precedence, overlap,
    inclusion, identical coverage) over token and structural spans
  • A five-pass cost-based query planner and pull-based executor
  • A corpus manager with lazy loading, byte-budget eviction, and
    background-durable graph updates`,
	}

	rootCmd.AddCommand(versionCmd(), serveCmd(), importCmd(), convertCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("nornicorpus v%s (%s)\n", version, commit)
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the corpus manager and answer plan queries from stdin",
		Long: `serve loads the corpus manager rooted at the configured data
directory and, for every JSON request read from stdin (one per line),
writes a JSON response to stdout. A request is:

  {"corpus": "tiger", "offset": 0, "limit": 10, "plan": {"Variables": {...}, "Joins": [...]}}

omitting "limit" (or passing <= 0) returns only the match count.`,
		RunE: runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging)
	defer logger.Sync() //nolint:errcheck

	m, err := manager.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("starting corpus manager: %w", err)
	}
	defer m.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "nornicorpus v%s serving corpora under %s\n", version, cfg.Manager.DataDir)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		<-sigCh
		close(done)
	}()

	reqCh := make(chan request)
	go readRequests(cmd.InOrStdin(), reqCh)

	for {
		select {
		case <-done:
			return nil
		case req, ok := <-reqCh:
			if !ok {
				return nil
			}
			writeResponse(cmd.OutOrStdout(), handleRequest(m, req))
		}
	}
}

type request struct {
	Corpus string            `json:"corpus"`
	Offset int               `json:"offset"`
	Limit  int               `json:"limit"`
	Plan   planner.PlanInput `json:"plan"`
}

type response struct {
	Count   int64    `json:"count,omitempty"`
	Matches []string `json:"matches,omitempty"`
	Error   string   `json:"error,omitempty"`
}

func readRequests(r io.Reader, out chan<- request) {
	defer close(out)
	dec := json.NewDecoder(r)
	for {
		var req request
		if err := dec.Decode(&req); err != nil {
			return
		}
		out <- req
	}
}

func handleRequest(m *manager.Manager, req request) response {
	if req.Limit > 0 {
		tuples, err := m.Find(req.Corpus, req.Plan, req.Offset, req.Limit)
		if err != nil {
			return response{Error: err.Error()}
		}
		return response{Count: int64(len(tuples)), Matches: formatTuples(tuples)}
	}
	n, err := m.Count(req.Corpus, req.Plan)
	if err != nil {
		return response{Error: err.Error()}
	}
	return response{Count: n}
}

// formatTuples renders each result tuple with fmt's default %v format.
func formatTuples(tuples []executor.Tuple) []string {
	out := make([]string, len(tuples))
	for i, tup := range tuples {
		out[i] = fmt.Sprintf("%v", tup)
	}
	return out
}

func writeResponse(w io.Writer, resp response) {
	data, err := json.Marshal(resp)
	if err != nil {
		fmt.Fprintf(w, `{"error":%q}`+"\n", err.Error())
		return
	}
	w.Write(data) //nolint:errcheck
	fmt.Fprintln(w)
}

func importCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "import [corpus] [script.json]",
		Short: "Apply a graph-update script to a corpus",
		Long: `import reads a graph-update script (a JSON array of events, see
spec.md §6) from the given file and applies it to the named corpus,
creating the corpus if it does not yet exist.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args, dataDir)
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Override the configured data directory")
	return cmd
}

func runImport(cmd *cobra.Command, args []string, dataDir string) error {
	corpusName, scriptPath := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.Manager.DataDir = dataDir
	}

	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("reading script: %w", err)
	}
	var events []manager.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("parsing script: %w", err)
	}

	logger := logging.New(cfg.Logging)
	defer logger.Sync() //nolint:errcheck

	m, err := manager.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("starting corpus manager: %w", err)
	}
	defer m.Close()

	script := manager.NewScript(events)
	if err := m.ApplyUpdate(corpusName, script); err != nil {
		return fmt.Errorf("applying update: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "applied %d events to %s (change-id %d)\n",
		len(events), corpusName, script.LastConsistentChangeID)
	return nil
}

func convertCmd() *cobra.Command {
	var dataDir, layer string
	cmd := &cobra.Command{
		Use:   "convert [corpus] [component-type]",
		Short: "Force re-optimization of a component's storage strategy",
		Long: `convert loads the named corpus and re-runs the graph-storage
registry's strategy selection for the named component-type/layer,
reporting which strategy (adjacency list, linear, pre/post order) it
settled on (spec.md §4.3 Conversion).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, args, dataDir, layer)
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Override the configured data directory")
	cmd.Flags().StringVar(&layer, "layer", "annis", "Component layer")
	return cmd
}

func runConvert(cmd *cobra.Command, args []string, dataDir, layer string) error {
	corpusName, compTypeArg := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.Manager.DataDir = dataDir
	}

	compType, ok := parseComponentType(compTypeArg)
	if !ok {
		return fmt.Errorf("unknown component type %q", compTypeArg)
	}

	logger := logging.New(cfg.Logging)
	defer logger.Sync() //nolint:errcheck

	m, err := manager.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("starting corpus manager: %w", err)
	}
	defer m.Close()

	c, err := m.Corpus(corpusName)
	if err != nil {
		return fmt.Errorf("loading %s: %w", corpusName, err)
	}

	width, err := c.Optimize(graph.Component{Type: compType, Layer: layer})
	if err != nil {
		return fmt.Errorf("optimizing component: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s/%s converted to %s\n", compType, layer, width)
	return nil
}

func parseComponentType(s string) (graph.ComponentType, bool) {
	for t := graph.Coverage; t <= graph.PartOfSubcorpus; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}
