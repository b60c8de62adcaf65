package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init configures the global zerolog logger. Level names follow zerolog
// conventions ("debug", "info", "warn", "error"). When file is non-empty,
// log lines are also written there as JSON with rotation, so long-running
// servers do not fill the disk.
func Init(level, file string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	console := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}

	var sink io.Writer = console
	if file != "" {
		if dir := filepath.Dir(file); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create log directory %q: %w", dir, err)
			}
		}
		rotating := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    16, // megabytes
			MaxBackups: 32,
			MaxAge:     365, // days
			Compress:   true,
		}
		sink = zerolog.MultiLevelWriter(console, rotating)
	}

	log.Logger = zerolog.New(sink).With().Timestamp().Logger()
	return nil
}
