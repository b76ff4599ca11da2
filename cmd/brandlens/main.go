package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/TobiSchelling/BrandLens/internal/archive"
	"github.com/TobiSchelling/BrandLens/internal/categorize"
	"github.com/TobiSchelling/BrandLens/internal/config"
	"github.com/TobiSchelling/BrandLens/internal/database"
	"github.com/TobiSchelling/BrandLens/internal/discover"
	"github.com/TobiSchelling/BrandLens/internal/execute"
	"github.com/TobiSchelling/BrandLens/internal/fetch"
	"github.com/TobiSchelling/BrandLens/internal/generate"
	"github.com/TobiSchelling/BrandLens/internal/llm"
	"github.com/TobiSchelling/BrandLens/internal/logging"
	"github.com/TobiSchelling/BrandLens/internal/server"
	"github.com/TobiSchelling/BrandLens/internal/workflow"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
	v          = config.NewViper()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "brandlens",
	Short:   "Brand visibility in AI answers",
	Long:    "BrandLens crawls a website, generates the questions its customers ask AI assistants, and measures how visible the brand is in the answers.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := config.ApplyOverrides(cfg, v); err != nil {
			return fmt.Errorf("applying overrides: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		logger.Debug("config loaded", zap.String("path", path))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Use canned answers instead of calling the answer API")
	rootCmd.PersistentFlags().String("database", "", "Path to SQLite database file")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"openai.debug", "debug"},
		{"database.path", "database"},
	}
	for _, bind := range bindFlags {
		if err := v.BindPFlag(bind.viperKey, rootCmd.PersistentFlags().Lookup(bind.flagName)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(deleteCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("brandlens", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/brandlens/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the API key variable, models and storage.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database status and recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s (%s)\n\n", db.Path(), db.Driver())
		fmt.Println("Runs:")
		fmt.Printf("  Total: %d\n", stats.Runs)
		fmt.Printf("  Completed: %d\n", stats.CompletedRuns)
		fmt.Println("\nData:")
		fmt.Printf("  Prompts: %d\n", stats.Prompts)
		fmt.Printf("  Responses: %d\n", stats.Responses)
		fmt.Printf("  Citations: %d\n", stats.Citations)

		runs, err := db.ListRuns(ctx, 10)
		if err != nil {
			return err
		}
		if len(runs) > 0 {
			fmt.Println("\nRecent runs:")
			for _, r := range runs {
				fmt.Printf("  %s  %-9s %-10s %s\n", r.ID, r.Status, r.CurrentStep, r.WebsiteURL)
			}
		}
		return nil
	},
}

// --- run command ---

var (
	runBrand       string
	runCountry     string
	runRegion      string
	runLanguage    string
	runDescription string
	runQuestions   int
)

var runCmd = &cobra.Command{
	Use:   "run [website-url]",
	Short: "Run every step for a website: discover -> content -> categories -> prompts -> execute",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		wf, err := newOrchestrator(ctx, db)
		if err != nil {
			return err
		}

		in := workflow.RunInput{
			Step1Input: workflow.Step1Input{
				WebsiteURL: args[0],
				BrandName:  runBrand,
				Country:    runCountry,
				Language:   runLanguage,
			},
			Description:          runDescription,
			QuestionsPerCategory: runQuestions,
		}
		if runRegion != "" {
			in.Region = &runRegion
		}

		result := wf.Run(ctx, in)
		for i, step := range result.Steps {
			fmt.Printf("\nStep %d/5: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		if result.Failed() {
			return fmt.Errorf("run %s did not complete", result.RunID)
		}

		if a := result.Analysis; a != nil && a.Summary != nil {
			fmt.Printf("\nBrand mentions: %d, brand citations: %d, white-space prompts: %d\n",
				a.Summary.TotalMentions, a.Summary.TotalCitations, len(a.Summary.WhiteSpacePrompts))
		}
		fmt.Printf("\nRun %s complete! Start 'brandlens serve' and open /api/runs/%s/report.\n", result.RunID, result.RunID)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runBrand, "brand", "", "Brand name (default: derived from the domain)")
	runCmd.Flags().StringVar(&runCountry, "country", "US", "Country the questions are asked from")
	runCmd.Flags().StringVar(&runRegion, "region", "", "Region within the country")
	runCmd.Flags().StringVar(&runLanguage, "language", "en", "Language code of the questions")
	runCmd.Flags().StringVar(&runDescription, "description", "", "Short description of the business")
	runCmd.Flags().IntVar(&runQuestions, "questions", 0, "Questions per category (default from config)")
}

// --- delete command ---

var deleteCmd = &cobra.Command{
	Use:   "delete [run-id]",
	Short: "Delete a run and all of its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteRun(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted run %s\n", args[0])
		return nil
	},
}

// --- serve command ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		wf, err := newOrchestrator(ctx, db)
		if err != nil {
			return err
		}
		srv, err := server.New(wf, db, cfg.Server.CORSOrigins, logger)
		if err != nil {
			return err
		}

		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		fmt.Printf("Starting server at http://localhost%s\n", addr)
		fmt.Println("Press Ctrl+C to stop")
		return srv.Serve(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8787, "Port to run server on")
	if err := v.BindPFlag("server.port", serveCmd.Flags().Lookup("port")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind flag port: %v\n", err)
	}
}

func openDB() (*database.DB, error) {
	p := cfg.Persistence
	return database.Open(database.Options{
		Driver:         cfg.Database.Driver,
		Path:           cfg.GetDatabasePath(),
		DSN:            cfg.Database.DSN,
		ChunkSize:      p.ChunkSize,
		ChunkDelay:     p.ChunkDelay,
		MaxRetries:     p.MaxRetries,
		RetryBaseDelay: p.RetryBaseDelay,
		Logger:         logger,
	})
}

// newOrchestrator wires every workflow component from the loaded config.
func newOrchestrator(ctx context.Context, db *database.DB) (*workflow.Orchestrator, error) {
	apiKey := cfg.APIKey()

	var provider llm.Provider
	if apiKey != "" {
		provider = llm.NewOpenAIProvider(apiKey, cfg.OpenAI.BaseURL, cfg.OpenAI.GenerationModel, cfg.OpenAI.GenerationTimeout, logger)
	} else {
		logger.Warn("no API key set, categories and questions come from fallbacks",
			zap.String("env", cfg.OpenAI.APIKeyEnv))
	}
	if apiKey == "" && !cfg.OpenAI.Debug {
		logger.Warn("no API key set and debug mode off, prompt execution will fail")
	}

	var archiver execute.Archiver
	if cfg.Archive.Enabled {
		store, err := archive.New(ctx, archive.Options{
			Endpoint:  cfg.Archive.Endpoint,
			Region:    cfg.Archive.Region,
			Bucket:    cfg.Archive.Bucket,
			AccessKey: os.Getenv(cfg.Archive.AccessKeyEnv),
			SecretKey: os.Getenv(cfg.Archive.SecretKeyEnv),
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting archive: %w", err)
		}
		archiver = store
	}

	fetcher := fetch.New(cfg.Discovery.UserAgent, logger)
	return workflow.New(workflow.Options{
		Store:      db,
		Discoverer: discover.New(fetcher, cfg.Discovery.Timeout, cfg.Discovery.MaxLinks, logger),
		Fetcher:    fetcher,
		Categories: categorize.New(provider, logger),
		Prompts:    generate.New(provider, cfg.Workflow.CategoryDelay, logger),
		Executor: execute.New(execute.Options{
			APIKey:   apiKey,
			BaseURL:  cfg.OpenAI.BaseURL,
			Model:    cfg.OpenAI.AnswerModel,
			Timeout:  cfg.OpenAI.AnswerTimeout,
			Debug:    cfg.OpenAI.Debug,
			Archiver: archiver,
			Logger:   logger,
		}),
		QuestionsPerCategory: cfg.Workflow.QuestionsPerCategory,
		PromptDelay:          cfg.Workflow.PromptDelay,
		ContentMaxPages:      cfg.Workflow.ContentMaxPages,
		PageTimeout:          cfg.Workflow.PageTimeout,
		Logger:               logger,
	}), nil
}
