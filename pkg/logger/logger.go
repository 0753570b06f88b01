package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init configures the process-wide logger. Development gets a console
// writer, everything else gets JSON lines.
func Init(env, level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if env == "development" && lvl > zerolog.DebugLevel {
		lvl = zerolog.DebugLevel
	}

	log = zerolog.New(out).Level(lvl).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
}

// SetOutput redirects the logger, mostly for tests.
func SetOutput(w io.Writer) {
	log = log.Output(w)
}

func Info(format string, v ...interface{}) {
	log.Info().Msgf(format, v...)
}

func Error(format string, v ...interface{}) {
	log.Error().Msgf(format, v...)
}

func Debug(format string, v ...interface{}) {
	log.Debug().Msgf(format, v...)
}

func Warn(format string, v ...interface{}) {
	log.Warn().Msgf(format, v...)
}

func Fatal(format string, v ...interface{}) {
	log.Fatal().Msgf(format, v...)
}
