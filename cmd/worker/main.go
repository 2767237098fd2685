// Package main is the worker node process: it connects to a broker's
// backend socket and renders pages dispatched to it one at a time.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/leandrosilva/wkpdfcluster/internal/config"
	wklog "github.com/leandrosilva/wkpdfcluster/internal/log"
	"github.com/leandrosilva/wkpdfcluster/internal/version"
	"github.com/leandrosilva/wkpdfcluster/internal/worker"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	outputDir string
	timeout   int
	endpoint  string
)

var rootCmd = &cobra.Command{
	Use:     "worker",
	Short:   "WkHTMLtoPDF cluster worker node",
	Long:    "Connects to a broker backend and renders dispatched requests one at a time.",
	Version: version.VERSION,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the worker node",
	RunE:  runStart,
}

func main() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/wkcluster/worker.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log formatter (text, json)")

	startCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	startCmd.Flags().IntVarP(&timeout, "timeout", "t", 5, "max seconds per render / heartbeat bound")
	startCmd.Flags().StringVarP(&endpoint, "endpoint", "e", "tcp://127.0.0.1:6661", "broker backend endpoint")
	if err := startCmd.MarkFlagRequired("output"); err != nil {
		log.WithError(err).Fatal("failed to mark output flag required")
	}

	rootCmd.AddCommand(startCmd)

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("worker exited with error")
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	var cfg config.WorkerConfig
	if err := config.Load("worker", &cfg, config.DefaultWorkerConfig()); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Formatter = logFormat
	}
	wklog.Initialize(cfg.Log)

	workerID := fmt.Sprintf("W%d", os.Getpid())
	log.WithField("worker_id", workerID).Info("WkHTMLtoPDF Cluster :: Worker :: start")

	w := worker.New(workerID, endpoint, outputDir, time.Duration(timeout)*time.Second)
	watchStopSignal(w, workerID)

	err := w.Run(func() {
		log.WithField("worker_id", workerID).Info("worker is ready")
	})

	log.WithField("worker_id", workerID).Info("WkHTMLtoPDF Cluster :: Worker :: stop")
	return err
}

// watchStopSignal mirrors the cluster's double-Ctrl+C convention: the first
// SIGINT/SIGTERM requests a graceful shutdown, the second forces an
// immediate exit.
func watchStopSignal(w *worker.Worker, workerID string) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		gotSignal := false
		for range sigChan {
			if !gotSignal {
				log.WithField("worker_id", workerID).Warn("stop signal received")
				gotSignal = true
				w.Stop()
				continue
			}
			log.WithField("worker_id", workerID).Warn("second stop signal received, forcing exit")
			os.Exit(1)
		}
	}()
}
