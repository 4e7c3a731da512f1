// Command lighting runs the crop bed lighting core: it loads a YAML
// configuration describing a crop bed's PDMs and CAN bus, then serves a
// persistent-connection TCP listener that actuates light channels
// immediately on arrival.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldworks/cropbed-control/pkg/lighting"
	"github.com/fieldworks/cropbed-control/pkg/logger"
)

func main() {
	fs := flag.NewFlagSet("lighting", flag.ExitOnError)
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

	cfg, err := lighting.LoadConfig(filepath)
	if err != nil {
		log_.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	core, err := lighting.NewCore(cfg, log_)
	if err != nil {
		log_.Error("failed to initialise lighting core", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log_.Info("shutdown signal received")
		cancel()
	}()

	log_.Info("lighting core starting", "crop_bed_id", cfg.CropBedID, "port", cfg.Port, "canbus_id", cfg.CanbusID)
	if err := core.Run(ctx, cfg.Port); err != nil {
		log_.Error("lighting core exited with error", "error", err)
		os.Exit(1)
	}
	log_.Info("lighting core stopped")
}
