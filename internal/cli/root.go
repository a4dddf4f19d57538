// Package cli wires the configuration, services and HTTP server into cobra commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liliang-cn/oraculo/internal/config"
	"github.com/liliang-cn/oraculo/internal/metrics"
	"github.com/liliang-cn/oraculo/internal/service"
)

// app carries what every command needs once the config is loaded.
type app struct {
	configPath string

	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	orch    *service.Orchestrator
}

// NewRootCommand builds the oraculo command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "oraculo",
		Short:         "Family document oracle",
		Long:          "Catalogs family PDFs, indexes them for semantic search and answers questions about them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default is ./config.yaml)")

	root.AddCommand(
		serveCMD(a),
		updateCMD(a),
		catalogCMD(a),
		indexCMD(a),
		searchCMD(a),
		askCMD(a),
		inspectCMD(a),
	)
	return root
}

// Execute runs the root command
func Execute() error {
	return NewRootCommand().Execute()
}

func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.metrics = metrics.New()
	a.orch = service.NewOrchestrator(cfg, logger, a.metrics)
	return nil
}

func (a *app) close() error {
	if a.orch == nil {
		return nil
	}
	err := a.orch.Close()
	_ = a.logger.Sync()
	a.orch = nil
	return err
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	return zc.Build()
}
