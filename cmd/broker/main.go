// Package main is the broker node process: it binds the cluster's two
// ROUTER sockets, supervises the worker fleet, and load-balances render
// requests across it.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leandrosilva/wkpdfcluster/internal/broker"
	"github.com/leandrosilva/wkpdfcluster/internal/config"
	wklog "github.com/leandrosilva/wkpdfcluster/internal/log"
	"github.com/leandrosilva/wkpdfcluster/internal/version"
)

var (
	cfgFile    string
	logLevel   string
	logFormat  string
	b          *broker.Broker
	instances  int
	workerPath string
	outputDir  string
	timeout    int
	frontend   string
	backend    string
)

var rootCmd = &cobra.Command{
	Use:     "broker",
	Short:   "WkHTMLtoPDF cluster broker",
	Long:    "Binds the cluster frontend and backend sockets and supervises the worker fleet.",
	Version: version.VERSION,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the broker and its worker fleet",
	RunE:  runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the last known broker status",
	RunE:  runStatus,
}

func main() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/wkcluster/broker.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log formatter (text, json)")

	startCmd.Flags().IntVarP(&instances, "instances", "i", 0, "number of worker instances")
	startCmd.Flags().StringVarP(&workerPath, "worker", "w", "", "worker node's binary path")
	startCmd.Flags().StringVarP(&outputDir, "output", "o", "./examples/pdf", "output directory")
	startCmd.Flags().IntVarP(&timeout, "timeout", "t", 5, "max seconds per render request")
	startCmd.Flags().StringVar(&frontend, "frontend", "tcp://127.0.0.1:6660", "client-facing endpoint")
	startCmd.Flags().StringVar(&backend, "backend", "tcp://127.0.0.1:6661", "worker-facing endpoint")
	if err := startCmd.MarkFlagRequired("instances"); err != nil {
		log.WithError(err).Fatal("failed to mark instances flag required")
	}

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("broker exited with error")
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	var cfg config.BrokerConfig
	if err := config.Load("broker", &cfg, config.DefaultBrokerConfig()); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Formatter = logFormat
	}
	wklog.Initialize(cfg.Log)

	if workerPath == "" {
		workerPath = defaultWorkerPath()
	}

	brokerID := os.Getpid()
	log.WithField("pid", brokerID).Info("WkHTMLtoPDF Cluster :: Broker :: start")

	b = broker.New(broker.Config{
		FrontendEndpoint: frontend,
		BackendEndpoint:  backend,
		WorkerBinPath:    workerPath,
		OutputDir:        outputDir,
		Instances:        instances,
		Timeout:          time.Duration(timeout) * time.Second,
	})

	watchStopSignal(b)

	runErr := b.Run(func(workerCount int) {
		log.WithField("worker_count", workerCount).Info("all workers are up and running")
	})

	log.WithField("pid", brokerID).Info("WkHTMLtoPDF Cluster :: Broker :: stop")
	return runErr
}

func runStatus(cmd *cobra.Command, args []string) error {
	if b == nil {
		fmt.Println("status: unknown (broker not running in this process)")
		return nil
	}
	fmt.Printf("status: %s\n", b.Status.Status())
	if n := b.Status.ErrorCount(); n > 0 {
		fmt.Printf("errors observed: %d (last: %v)\n", n, b.Status.LastError())
	}
	return nil
}

// watchStopSignal mirrors the cluster's double-Ctrl+C convention: the first
// SIGINT/SIGTERM requests a graceful shutdown, the second forces an
// immediate exit.
func watchStopSignal(b *broker.Broker) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		gotSignal := false
		for range sigChan {
			if !gotSignal {
				log.Warn("shutdown signal received, stopping gracefully")
				gotSignal = true
				b.Stop()
				continue
			}
			log.Warn("second shutdown signal received, forcing exit")
			os.Exit(1)
		}
	}()
}

func defaultWorkerPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "wk_worker"
	}
	return filepath.Join(filepath.Dir(exe), "wk_worker")
}
