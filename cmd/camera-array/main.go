// Command camera-array runs the crop bed camera array capture core: it
// loads a YAML configuration describing a crop bed's cameras, starts one
// capture worker per camera synchronised by a shared barrier, and writes
// captured frames under the configured image path.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldworks/cropbed-control/pkg/camarray"
	"github.com/fieldworks/cropbed-control/pkg/logger"
)

func main() {
	fs := flag.NewFlagSet("camera-array", flag.ExitOnError)
	var filepath string
	fs.StringVar(&filepath, "filepath", "", "Path to YAML configuration file")
	fs.StringVar(&filepath, "f", "", "Path to YAML configuration file (shorthand)")

	logFlags := logger.RegisterFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -f <config.yaml> [flags]\n\n", fs.Name())
		fs.PrintDefaults()
		logger.PrintUsageExamples()
	}
	fs.Parse(os.Args[1:])

	if filepath == "" {
		fmt.Fprintln(os.Stderr, "error: -f/--filepath is required")
		fs.Usage()
		os.Exit(1)
	}

	logCfg, err := logFlags.ToConfig()
	if err != nil {
		log.Fatalf("invalid logging flags: %v", err)
	}
	log_, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("failed to initialise logger: %v", err)
	}
	defer log_.Close()
	logger.SetDefault(log_)

	cfg, err := camarray.LoadConfig(filepath)
	if err != nil {
		log_.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var slogLogger *slog.Logger = log_.Logger
	core, err := camarray.NewCore(ctx, cfg, slogLogger)
	if err != nil {
		log_.Error("failed to initialise camera array core", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log_.Info("shutdown signal received")
		cancel()
	}()

	log_.Info("camera array core starting", "crop_bed_id", cfg.CropBedID, "image_path", cfg.ImagePath, "cameras", len(cfg.CameraConfigFiles))
	if err := core.Run(ctx); err != nil {
		log_.Error("camera array core exited with error", "error", err)
		os.Exit(1)
	}
	log_.Info("camera array core stopped")
}
