package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"colsense/adapters/memory"
	"colsense/adapters/postgres"
	"colsense/adapters/sqlite"
	"colsense/adapters/tabular"
	"colsense/domain/mapping"
	"colsense/internal"
	"colsense/internal/config"
	"colsense/internal/engine"
	apperrors "colsense/internal/errors"
	"colsense/internal/vocab"
	"colsense/ports"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "colsense",
		Short: "Resolve tabular column headers to canonical analytics types",
	}

	rootCmd.AddCommand(
		newResolveCmd(),
		newConfirmCmd(),
		newIgnoreCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		if code := apperrors.GetCode(err); code != "UNKNOWN" {
			fmt.Fprintf(os.Stderr, "%s: %v\n", code, err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newResolveCmd() *cobra.Command {
	var learn bool
	var pretty bool
	var confirmed []string

	cmd := &cobra.Command{
		Use:   "resolve [files...]",
		Short: "Resolve column mappings for CSV or XLSX files",
		Long: `Resolve every column of the given files to a canonical analytics type.

Example: colsense resolve sales_q1.csv sales_q2.xlsx --confirm "Order Date=Date" --pretty`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.Options{Learn: learn}
			var err error
			opts.Confirmed, err = parseConfirmed(confirmed)
			if err != nil {
				return err
			}
			return runResolve(cmd.Context(), args, opts, pretty)
		},
	}

	cmd.Flags().BoolVar(&learn, "learn", false, "Record resolved mappings back into the knowledge base")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent JSON output")
	cmd.Flags().StringArrayVar(&confirmed, "confirm", nil, `Pre-confirmed mapping as "column=Type" (repeatable)`)

	return cmd
}

func newConfirmCmd() *cobra.Command {
	var confidence float64

	cmd := &cobra.Command{
		Use:   "confirm [column] [type]",
		Short: "Record a user-confirmed mapping in the knowledge base",
		Long: `Record that a column name maps to a canonical type. Confirmed mappings
raise the confidence of future resolutions of the same header.

Example: colsense confirm "Order Date" Date`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, store, log, err := buildEngine()
			if err != nil {
				return err
			}
			defer closeStore(store, log)

			return eng.Confirm(cmd.Context(), args[0], mapping.CanonicalType(args[1]), confidence)
		},
	}

	cmd.Flags().Float64Var(&confidence, "confidence", 100, "Confidence to record with the confirmation")

	return cmd
}

func newIgnoreCmd() *cobra.Command {
	var analyticsContext string

	cmd := &cobra.Command{
		Use:   "ignore [column]",
		Short: "Record that a column should be ignored",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, store, log, err := buildEngine()
			if err != nil {
				return err
			}
			defer closeStore(store, log)

			return eng.Ignore(cmd.Context(), args[0], analyticsContext)
		},
	}

	cmd.Flags().StringVar(&analyticsContext, "context", "general", "Analytics context the ignore applies to")

	return cmd
}

type fileResult struct {
	File   string                 `json:"file"`
	Result *mapping.MappingResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

func runResolve(ctx context.Context, files []string, opts engine.Options, pretty bool) error {
	eng, store, log, err := buildEngine()
	if err != nil {
		return err
	}
	defer closeStore(store, log)

	reader := tabular.NewReader()
	results := make([]fileResult, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			results[i] = resolveFile(gctx, eng, reader, file, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	for _, r := range results {
		if r.Error != "" {
			return fmt.Errorf("%s: %s", r.File, r.Error)
		}
	}
	return nil
}

func resolveFile(ctx context.Context, eng *engine.Engine, reader tabular.Reader, file string, opts engine.Options) fileResult {
	out := fileResult{File: file}

	columns, err := reader.ReadColumns(file)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	result, err := eng.Resolve(ctx, columns, opts)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Result = result
	return out
}

func buildEngine() (*engine.Engine, ports.KnowledgeStore, *internal.Logger, error) {
	log := internal.NewDefaultLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	v := vocab.Default()
	if cfg.Vocab.OverlayFile != "" {
		if v, err = vocab.LoadFile(cfg.Vocab.OverlayFile); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to load vocabulary overlay: %w", err)
		}
	}

	store, err := openStore(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}

	return engine.New(cfg.Engine, v, store, log), store, log, nil
}

func openStore(cfg *config.Config, log *internal.Logger) (ports.KnowledgeStore, error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case "sqlite", "":
		store, err := sqlite.Open(context.Background(), cfg.Store.Path)
		if err != nil {
			return nil, apperrors.Persistence("opening sqlite knowledge store", err)
		}
		if store.Recovered {
			log.Warn("knowledge base was corrupt; moved aside and reinitialized path=%s", cfg.Store.Path)
		}
		return store, nil
	case "postgres":
		store, err := postgres.Open(context.Background(), cfg.Store.URL)
		if err != nil {
			return nil, apperrors.Persistence("opening postgres knowledge store", err)
		}
		return store, nil
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

func closeStore(store ports.KnowledgeStore, log *internal.Logger) {
	if err := store.Close(); err != nil {
		log.Warn("failed to close knowledge store: %v", err)
	}
}

func parseConfirmed(pairs []string) (map[string]mapping.CanonicalType, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]mapping.CanonicalType, len(pairs))
	for _, pair := range pairs {
		column, t, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return nil, fmt.Errorf("invalid --confirm value %q (want \"column=Type\")", pair)
		}
		ct := mapping.CanonicalType(strings.TrimSpace(t))
		if !ct.Valid() {
			return nil, fmt.Errorf("invalid --confirm type %q for column %q", t, column)
		}
		out[strings.TrimSpace(column)] = ct
	}
	return out, nil
}
