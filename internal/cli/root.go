package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"paperrag/internal/completion"
	"paperrag/internal/config"
	"paperrag/internal/domain"
	"paperrag/internal/embedding"
	"paperrag/internal/loader"
	"paperrag/internal/service"
	"paperrag/internal/vectorstore"
)

// Process exit codes.
const (
	ExitSuccess         = 0
	ExitGenericError    = 1
	ExitConfigInvalid   = 2
	ExitIngestionFailed = 6
)

// ExitError carries the exit code a command failed with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, domain.ErrInvalidConfiguration) || errors.Is(err, domain.ErrTemplate) {
		return ExitConfigInvalid
	}
	return ExitGenericError
}

// GlobalFlags holds flags shared across all commands.
type GlobalFlags struct {
	ConfigPath string
	EnvFiles   []string
	Verbose    bool
}

// NewRootCommand builds the paperrag command tree.
func NewRootCommand() *cobra.Command {
	flags := &GlobalFlags{}
	root := &cobra.Command{
		Use:           "paperrag",
		Short:         "Index a directory of papers and answer questions about them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to YAML config (default ./config.yaml, then ~/.config/paperrag/config.yaml)")
	root.PersistentFlags().StringSliceVar(&flags.EnvFiles, "env-file", []string{".env"}, "dotenv files to load before reading the config")
	root.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newPopulateCmd(flags))
	root.AddCommand(newQueryCmd(flags))
	root.AddCommand(newTUICmd(flags))
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	err := NewRootCommand().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return ExitCode(err)
}

// loadConfig reads and validates the config selected by flags.
func loadConfig(flags *GlobalFlags) (*config.AppConfig, error) {
	if err := config.LoadDotEnv(flags.EnvFiles...); err != nil {
		return nil, &ExitError{Code: ExitConfigInvalid, Err: err}
	}
	var (
		cfg *config.AppConfig
		err error
	)
	if flags.ConfigPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(flags.ConfigPath)
	}
	if err != nil {
		return nil, &ExitError{Code: ExitConfigInvalid, Err: fmt.Errorf("failed to load config: %w", err)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ExitError{Code: ExitConfigInvalid, Err: err}
	}
	return cfg, nil
}

func newLogger(cfg config.LogConfig, verbose bool, out io.Writer) *log.Logger {
	logger := log.New()
	logger.SetOutput(out)
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	}
	return logger
}

// app holds the wired service and the resources to release afterwards.
type app struct {
	cfg      *config.AppConfig
	svc      *service.RAGService
	embedder domain.Embedder
	store    domain.VectorStore
}

func (a *app) Close() error {
	return errors.Join(embedding.Close(a.embedder), a.store.Close())
}

// newApp wires the configured providers. The completer is only built when
// withCompleter is set, so populate works without language model credentials.
func newApp(ctx context.Context, cfg *config.AppConfig, logger log.FieldLogger, withCompleter bool) (*app, error) {
	emb, err := embedding.New(cfg.Embedder, logger)
	if err != nil {
		return nil, &ExitError{Code: ExitConfigInvalid, Err: err}
	}
	var completer domain.Completer
	if withCompleter {
		completer, err = completion.New(cfg.Completer, logger)
		if err != nil {
			_ = embedding.Close(emb)
			return nil, &ExitError{Code: ExitConfigInvalid, Err: err}
		}
	}
	store, err := vectorstore.New(ctx, cfg.VectorStore)
	if err != nil {
		_ = embedding.Close(emb)
		return nil, fmt.Errorf("%w: open %s: %w", domain.ErrStore, cfg.VectorStore.Type, err)
	}

	ld := loader.New(loader.Config{
		Root:       cfg.DataPath,
		Extensions: cfg.Loader.Extensions,
		PDFToText:  cfg.Loader.PDFToText,
	}, loader.WithLogger(logger))

	svc, err := service.NewRAGService(ld, emb, store, completer, service.Options{
		ChunkSize:    cfg.Chunker.ChunkSize,
		ChunkOverlap: cfg.Chunker.ChunkOverlap,
		MaxBatchSize: cfg.Indexer.MaxBatchSize,
		Workers:      cfg.Indexer.Workers,
		TopK:         cfg.Retrieval.TopK,
		Template:     cfg.Prompt.Template,
	}, logger)
	if err != nil {
		_ = embedding.Close(emb)
		_ = store.Close()
		return nil, &ExitError{Code: ExitConfigInvalid, Err: err}
	}
	return &app{cfg: cfg, svc: svc, embedder: emb, store: store}, nil
}
