package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cast-extractor/internal/cache"
	"cast-extractor/internal/config"
	"cast-extractor/internal/export"
	"cast-extractor/internal/extract"
	"cast-extractor/internal/filewalker"
	"cast-extractor/internal/graph"
	"cast-extractor/internal/store"
	"cast-extractor/internal/textutil"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mattn/go-isatty"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	setupLogging("info")

	rootCmd := &cobra.Command{
		Use:   "castx",
		Short: "Recover text, sounds and scripts from Director movie and cast files",
		Long: `castx reads RIFX/XFIR containers (.dir, .dxr, .cst, .cxt and friends),
resolves their cast libraries and decodes member payloads. Files whose index
is damaged are dumped chunk by chunk instead of being rejected.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level, _ := cmd.Flags().GetString("log-level")
			if level == "" {
				level = config.Load().LogLevel
			}
			setupLogging(level)
		},
	}

	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (default $LOG_LEVEL)")
	rootCmd.PersistentFlags().String("encoding", "", "8-bit text encoding: latin1 or macroman (default $TEXT_ENCODING)")
	rootCmd.PersistentFlags().Int("workers", 0, "Concurrent files (default $WORKER_COUNT)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Per-file extraction timeout (default $FILE_TIMEOUT)")

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(chunksCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(contextCmd())
	rootCmd.AddCommand(soundsCmd())
	rootCmd.AddCommand(similarCmd())
	rootCmd.AddCommand(danglingCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging writes human-readable logs to a terminal and JSON otherwise.
func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if shouldColorize(os.Stderr) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// loadConfig reads the environment and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	flags := cmd.Flags()
	if v, _ := flags.GetString("encoding"); v != "" {
		cfg.TextEncoding = v
	}
	if v, _ := flags.GetInt("workers"); v > 0 {
		cfg.WorkerCount = v
	}
	if v, _ := flags.GetDuration("timeout"); v > 0 {
		cfg.FileTimeout = v
	}
	return cfg
}

func extractOptions(cfg *config.Config) (extract.Options, error) {
	dec, err := textutil.DecoderFor(cfg.TextEncoding)
	if err != nil {
		return extract.Options{}, err
	}
	opts := extract.DefaultOptions()
	opts.Decoder = dec
	if cfg.PascalMinLength > 0 {
		opts.PascalMinLength = cfg.PascalMinLength
	}
	if cfg.PrintableRunMin > 0 {
		opts.PrintableRunMin = cfg.PrintableRunMin
	}
	return opts, nil
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <path>...",
		Short: "Extract every file under the given paths",
		Long: `Walks each path for container files, extracts them concurrently and writes
the reports. A file that fails or times out never stops the batch.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig(cmd)
			if v, _ := cmd.Flags().GetString("format"); v != "" {
				cfg.OutputFormat = v
			}
			output, _ := cmd.Flags().GetString("output")
			toStore, _ := cmd.Flags().GetBool("store")
			toGraph, _ := cmd.Flags().GetBool("graph")
			force, _ := cmd.Flags().GetBool("force")
			return runExtract(cfg, args, output, toStore, toGraph, force)
		},
	}

	cmd.Flags().StringP("format", "f", "", "Output format: json, entries or tsv (default $OUTPUT_FORMAT)")
	cmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	cmd.Flags().Bool("store", false, "Save reports and strings to PostgreSQL ($DATABASE_URL)")
	cmd.Flags().Bool("graph", false, "Write the cross-reference graph to Neo4j ($NEO4J_URI)")
	cmd.Flags().Bool("force", false, "Store reports even when the file content is already stored")

	return cmd
}

// runExtract handles the `extract` command.
func runExtract(cfg *config.Config, roots []string, output string, toStore, toGraph, force bool) error {
	ctx, cancel := setupContext()
	defer cancel()

	opts, err := extractOptions(cfg)
	if err != nil {
		return err
	}

	w := filewalker.NewWalker()
	var paths []string
	for _, root := range roots {
		entries, err := w.Walk(root)
		if err != nil {
			return fmt.Errorf("walk %s: %w", root, err)
		}
		paths = append(paths, filewalker.Paths(entries)...)
	}
	if len(paths) == 0 {
		log.Warn().Strs("roots", roots).Msg("No container files found")
		return nil
	}

	log.Info().Int("files", len(paths)).Int("workers", cfg.WorkerCount).Msg("Starting extraction")

	reps := extract.Batch(ctx, paths, opts, extract.BatchOptions{Workers: cfg.WorkerCount, Timeout: cfg.FileTimeout})

	if output == "" {
		if err := export.Write(os.Stdout, cfg.OutputFormat, reps); err != nil {
			return fmt.Errorf("write reports: %w", err)
		}
	} else if err := export.WriteFile(output, cfg.OutputFormat, reps); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, export.SummaryTable(reps))

	if toStore || toGraph {
		pgPool, neo4jDriver, err := initDependencies(ctx, cfg, toStore, toGraph)
		if err != nil {
			return err
		}
		if pgPool != nil {
			defer pgPool.Close()
			if err := storeReports(ctx, pgPool, reps, force); err != nil {
				return err
			}
		}
		if neo4jDriver != nil {
			defer neo4jDriver.Close(ctx)
			if err := graphReports(ctx, neo4jDriver, reps); err != nil {
				return err
			}
		}
	}

	failed := 0
	for _, r := range reps {
		if r.Status == extract.StatusFailed {
			failed++
		}
	}

	log.Info().
		Int("files", len(reps)).
		Int("failed", failed).
		Msg("Extraction complete")

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(reps))
	}
	return nil
}

func storeReports(ctx context.Context, pgPool *pgxpool.Pool, reps []*extract.Report, force bool) error {
	st := store.New(pgPool)
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	reportCache := cache.NewReportCache(pgPool)
	if err := cache.Preload(ctx, pgPool, reportCache); err != nil {
		log.Warn().Err(err).Msg("Failed to preload report cache")
	}

	stored, skipped := 0, 0
	for _, rep := range reps {
		if rep.SHA256 == "" {
			continue
		}
		if id, ok := reportCache.Get(ctx, rep.SHA256); ok && !force {
			log.Debug().Str("file", rep.File).Str("report", id).Msg("Content already stored, skipping")
			skipped++
			continue
		}
		id, err := st.SaveReport(ctx, rep, rep.SHA256)
		if err != nil {
			log.Error().Err(err).Str("file", rep.File).Msg("Store report failed")
			continue
		}
		reportCache.Set(rep.SHA256, id.String())
		stored++
	}

	log.Info().
		Str("run", st.RunID().String()).
		Int("stored", stored).
		Int("skipped", skipped).
		Msg("Reports stored")
	return nil
}

func graphReports(ctx context.Context, driver neo4j.DriverWithContext, reps []*extract.Report) error {
	gb := graph.NewGraphBuilder(driver)
	if err := gb.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure graph schema: %w", err)
	}
	for _, rep := range reps {
		if err := gb.AddReport(ctx, rep); err != nil {
			log.Warn().Err(err).Str("file", rep.File).Msg("Failed to add report to graph")
		}
	}
	return nil
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Warn().Msg("Received shutdown signal, cancelling...")
		cancel()
	}()

	return ctx, cancel
}

// initDependencies connects to the requested backends. A backend that is
// requested but not configured is an error.
func initDependencies(ctx context.Context, cfg *config.Config, withStore, withGraph bool) (*pgxpool.Pool, neo4j.DriverWithContext, error) {
	var pgPool *pgxpool.Pool
	if withStore {
		if !cfg.StoreEnabled() {
			return nil, nil, fmt.Errorf("DATABASE_URL is not set")
		}
		p, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect PostgreSQL: %w", err)
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return nil, nil, fmt.Errorf("ping PostgreSQL: %w", err)
		}
		log.Info().Msg("Connected to PostgreSQL")
		pgPool = p
	}

	if !withGraph {
		return pgPool, nil, nil
	}

	closePool := func() {
		if pgPool != nil {
			pgPool.Close()
		}
	}
	if !cfg.GraphEnabled() {
		closePool()
		return nil, nil, fmt.Errorf("NEO4J_URI is not set")
	}
	neo4jDriver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		closePool()
		return nil, nil, fmt.Errorf("connect Neo4j: %w", err)
	}
	if err := neo4jDriver.VerifyConnectivity(ctx); err != nil {
		closePool()
		neo4jDriver.Close(ctx)
		return nil, nil, fmt.Errorf("verify Neo4j connectivity: %w", err)
	}
	log.Info().Msg("Connected to Neo4j")

	return pgPool, neo4jDriver, nil
}
