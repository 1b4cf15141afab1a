package transport

import (
	"sort"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/hashicorp/go-hclog"
)

// LoggerAdapter forwards watermill logs to hclog
type LoggerAdapter struct {
	logger hclog.Logger
}

var _ watermill.LoggerAdapter = &LoggerAdapter{}

func NewLoggerAdapter(logger hclog.Logger) *LoggerAdapter {
	if logger == nil {
		logger = hclog.Default().Named("watermill")
	}
	return &LoggerAdapter{logger: logger}
}

func (a *LoggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.logger.Error(msg, append(toArgs(fields), "err", err)...)
}

func (a *LoggerAdapter) Info(msg string, fields watermill.LogFields) {
	a.logger.Info(msg, toArgs(fields)...)
}

func (a *LoggerAdapter) Debug(msg string, fields watermill.LogFields) {
	a.logger.Debug(msg, toArgs(fields)...)
}

func (a *LoggerAdapter) Trace(msg string, fields watermill.LogFields) {
	a.logger.Trace(msg, toArgs(fields)...)
}

func (a *LoggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &LoggerAdapter{logger: a.logger.With(toArgs(fields)...)}
}

// toArgs flattens fields into hclog key value pairs ordered by key
func toArgs(fields watermill.LogFields) []interface{} {
	if len(fields) == 0 {
		return []interface{}{}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]interface{}, 0, len(fields)*2)
	for _, k := range keys {
		args = append(args, k, fields[k])
	}
	return args
}
