// Command cakestress races goroutines over cake handles, checks that
// every object is destroyed exactly once, and reports the results.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cake/infra/kafka"
	"cake/internal/config"
	"cake/internal/logging"
	"cake/jobs/broadcaster"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("cakestress failed", "err", err)
		os.Exit(1)
	}
}

type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "cakestress",
		Short:         "Stress and observe cake owner, weak and proxy handles",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().String("log-level", "", "DEBUG, INFO, WARN or ERROR")
	root.PersistentFlags().String("log-format", "", "json or text")
	_ = a.v.BindPFlag("logging.level", root.PersistentFlags().Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", root.PersistentFlags().Lookup("log-format"))

	root.AddCommand(newRunCmd(a), newServeCmd(a))
	return root
}

func (a *app) load(w io.Writer) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, w)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	a.cfg = cfg
	a.logger = logger
	return nil
}

// stressFlags registers the flags shared by run and serve.
func (a *app) stressFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("trials", 0, "objects raced over per run")
	f.Int("workers", 0, "goroutines per object")
	f.Int("delete-odds", 0, "delete with probability 1/N per locked iteration")
	_ = a.v.BindPFlag("stress.trials", f.Lookup("trials"))
	_ = a.v.BindPFlag("stress.workers", f.Lookup("workers"))
	_ = a.v.BindPFlag("stress.delete_odds", f.Lookup("delete-odds"))
}

type publisher interface {
	broadcaster.Publisher
	Close() error
}

func newPublisher(cfg config.KafkaConfig) (publisher, error) {
	switch cfg.Client {
	case config.ClientKafkaGo:
		return kafka.NewProducer(cfg.Brokers, cfg.Topic), nil
	case config.ClientSarama:
		p, err := broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown kafka client %q", cfg.Client)
	}
}
