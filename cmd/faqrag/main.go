// Command faqrag serves and maintains the FAQ question-answering pipeline.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/upb/faq-rag/app"
	"github.com/upb/faq-rag/config"
	"github.com/upb/faq-rag/internal/observability"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "faqrag",
	Short: "Answer questions from an FAQ knowledge base",
	Long: `faqrag answers user questions from a knowledge base of FAQ pages.
Questions go through retrieval, grounded generation and automatic evaluation.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func initLogger() (*zap.Logger, error) {
	return observability.NewLogger(getEnv("LOG_LEVEL", "info"), getEnv("LOG_FORMAT", "json"))
}

// bootstrap loads the configuration and wires every dependency.
// The caller owns the returned dependencies and must Close them.
func bootstrap(ctx context.Context) (*app.Dependencies, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return deps, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
