// Package log configures the process wide hclog logger and offers printf style helpers for the cmd and rest layers.
package log

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenlistener/internal/appcontext"
	"github.com/pbinitiative/zenlistener/internal/profile"
)

// Init sets up the default logger. Level is read from LOG_LEVEL, LOG_FORMAT=json switches to json output.
// Without LOG_FORMAT the format follows the current profile.
func Init() {
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = profile.Current.DefaultLogFormat()
	}
	hclog.SetDefault(New(os.Getenv("LOG_LEVEL"), format))
}

func New(level string, format string) hclog.Logger {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		lvl = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "zenlistener",
		Level:      lvl,
		JSONFormat: strings.EqualFold(format, "json"),
		Output:     os.Stderr,
	})
}

func Info(format string, a ...any) {
	hclog.Default().Info(fmt.Sprintf(format, a...))
}

func Error(format string, a ...any) {
	hclog.Default().Error(fmt.Sprintf(format, a...))
}

func Debug(format string, a ...any) {
	hclog.Default().Debug(fmt.Sprintf(format, a...))
}

// Infof logs with the correlation id stored in ctx, if any
func Infof(ctx context.Context, format string, a ...any) {
	fromContext(ctx).Info(fmt.Sprintf(format, a...))
}

// Errorf logs with the correlation id stored in ctx, if any
func Errorf(ctx context.Context, format string, a ...any) {
	fromContext(ctx).Error(fmt.Sprintf(format, a...))
}

func fromContext(ctx context.Context) hclog.Logger {
	if id, ok := appcontext.GetCorrelationId(ctx); ok {
		return hclog.Default().With("correlationId", id)
	}
	return hclog.Default()
}
