package obs

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type loggerKey struct{}

var (
	loggerOnce sync.Once
	rootLogger zerolog.Logger
)

// InitLogging configures the process-wide JSON logger. Safe to call more than
// once; only the first call takes effect.
func InitLogging(level string) *zerolog.Logger {
	loggerOnce.Do(func() {
		lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil || lvl == zerolog.NoLevel {
			lvl = zerolog.InfoLevel
		}
		rootLogger = zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
	})
	return &rootLogger
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, &logger)
}

// Logger returns the context logger, falling back to the process logger.
func Logger(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if v, ok := ctx.Value(loggerKey{}).(*zerolog.Logger); ok && v != nil {
			return v
		}
	}
	return InitLogging("")
}
