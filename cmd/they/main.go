package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m4xw311/they/agent"
	"github.com/m4xw311/they/agent/terminal"
	"github.com/m4xw311/they/config"
	"github.com/m4xw311/they/errors"
	"github.com/m4xw311/they/llm"
	"github.com/m4xw311/they/session"
	"github.com/m4xw311/they/tools"
	"github.com/m4xw311/they/tools/mcp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

type options struct {
	envFile  string
	provider string
	model    string
	logFile  string
	trace    bool
	verbose  bool
	noMCP    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "they [prompt...]",
		Short:         "A terminal coding agent that reads, writes and runs things in the current directory",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, strings.Join(args, " "))
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default .env in the current directory)")
	f.StringVar(&opts.provider, "provider", "", "model provider, overrides PROVIDER")
	f.StringVar(&opts.model, "model", "", "model name, overrides MODEL")
	f.BoolVar(&opts.trace, "trace", false, "write a trace log to troubleshoot issues")
	f.BoolVar(&opts.verbose, "verbose", false, "include debug entries in the trace log")
	f.StringVar(&opts.logFile, "log-file", "", "trace log path (default ~/.they/they.log)")
	f.BoolVar(&opts.noMCP, "no-mcp", false, "do not start the configured MCP servers")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return cmd
}

// loadConfig reads the configuration and applies command-line overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{EnvFile: opts.envFile})
	if err != nil {
		return nil, err
	}
	if opts.provider != "" {
		cfg.Provider = opts.provider
	}
	if opts.model != "" {
		cfg.Model = opts.model
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(opts options) (*zap.Logger, error) {
	if !opts.trace {
		return zap.NewNop(), nil
	}
	path := opts.logFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrapf(err, "could not find home directory for the trace log")
		}
		path = filepath.Join(home, ".they", "they.log")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "could not create trace log directory")
	}

	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{path}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if opts.verbose {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrapf(err, "could not open trace log %s", path)
	}
	return logger, nil
}

func run(ctx context.Context, opts options, initialPrompt string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := newLogger(opts)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration loaded",
		zap.Strings("sources", cfg.Sources),
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model))

	client, err := llm.New(ctx, cfg)
	if err != nil {
		return errors.Wrapf(err, "could not initialize %s client", cfg.Provider)
	}
	if c, ok := client.(io.Closer); ok {
		defer c.Close()
	}

	registry := tools.NewToolRegistry(cfg, tools.WithLogger(logger))
	if !opts.noMCP && len(cfg.MCPServers) > 0 {
		servers := mcp.StartAll(ctx, cfg.MCPServers, logger)
		defer func() {
			for _, s := range servers {
				if err := s.Stop(); err != nil {
					logger.Warn("failed to stop MCP server", zap.String("server", s.Name), zap.Error(err))
				}
			}
		}()
		for _, s := range servers {
			for _, t := range s.Tools() {
				registry.Register(t)
			}
		}
	}

	a := agent.New(client, registry,
		agent.WithMaxIterations(cfg.MaxIterations),
		agent.WithLogger(logger),
	)
	term := terminal.New(a,
		terminal.WithSession(session.New(session.DefaultName(time.Now()))),
		terminal.WithModelInfo(terminal.ModelInfo{
			Provider:    cfg.Provider,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}),
		terminal.WithPasteThreshold(cfg.PasteThreshold),
		terminal.WithLogger(logger),
	)
	return term.Run(ctx, initialPrompt)
}
