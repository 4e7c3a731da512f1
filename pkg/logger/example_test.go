package logger_test

import (
	"fmt"
	"os"

	"github.com/fieldworks/cropbed-control/pkg/logger"
)

// Example showing basic logger usage
func ExampleLogger_basic() {
	// Create logger with default config
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelInfo
	cfg.Format = logger.FormatText

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	// Basic logging
	log.Info("crop bed power core started", "crop_bed_id", 1)
	log.Warn("channel map entry missing, falling back", "channel", 9)
	log.Error("failed to write CAN frame", "error", "no such device")
}

// Example showing debug category usage
func ExampleLogger_categories() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelDebug
	cfg.EnableCategory(logger.DebugSpray)
	cfg.EnableCategory(logger.DebugCAN)

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	// CAN debugging (only logged if DebugCAN enabled)
	log.DebugCANFrame(0x18EF1B00, []byte{0x11, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})

	// Generic category logging
	log.DebugSprayMsg("popped queue entry", "channels", []int{1, 2, 3})
	log.DebugPDMMsg("actuate", "pgn", 17, "pdm", 0)
}

// Example showing command-line flags integration
func ExampleFlags() {
	// In main.go:
	// import (
	//     "flag"
	//     "github.com/fieldworks/cropbed-control/pkg/logger"
	// )
	//
	// fs := flag.NewFlagSet("spray", flag.ExitOnError)
	// logFlags := logger.RegisterFlags(fs)
	// fs.Parse(os.Args[1:])
	//
	// logConfig, _ := logFlags.ToConfig()
	// log, _ := logger.New(logConfig)
	// defer log.Close()

	fmt.Println("See cmd/spray/main.go for complete example")
}

// Example showing JSON format output
func ExampleLogger_json() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelInfo
	cfg.Format = logger.FormatJSON
	cfg.OutputFile = "app.json"

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()
	defer os.Remove("app.json") // Cleanup

	log.Info("pdm initialised",
		"address", 30,
		"bed_location_id", 0,
		"channels", 12)

	// Output will be in JSON format:
	// {"time":"...","level":"INFO","msg":"pdm initialised","address":30,"bed_location_id":0,"channels":12}
}

// Example showing conditional debug logging
func ExampleLogger_conditional() {
	cfg := logger.NewConfig()
	cfg.EnableCategory(logger.DebugCamera)

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	// Category methods automatically check if enabled
	// No manual check needed - zero cost if disabled
	log.DebugCameraMsg("buffer not ready, restarting stream", "location_id", 2)
}
