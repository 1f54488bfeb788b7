package log

import (
	"maps"
	"slices"

	"github.com/on-the-ground/saga_ive_go/saga"
	"go.uber.org/zap"
)

// LogLevel defines the severity level for log messages.
type LogLevel string

const (
	// LogInfo is used for general informational messages.
	LogInfo LogLevel = "info"

	// LogWarn is used for potentially harmful situations.
	LogWarn LogLevel = "warn"

	// LogError is used for error events that might still allow the application to continue running.
	LogError LogLevel = "error"

	// LogDebug is used for debugging messages with detailed internal information.
	LogDebug LogLevel = "debug"
)

// LogPayload is the payload structure for logging effect.
// It contains the log level, message string, and optional structured fields.
type LogPayload struct {
	Level   LogLevel
	Message string
	Fields  map[string]any
}

var logEffect = saga.Define("log", handleLog)

// Eff builds a log effect. Yielding it writes one entry through the
// scheduler's logger, annotated with the yielding execution, and resolves
// to nil.
func Eff(level LogLevel, msg string, fields map[string]any) saga.Effect {
	return logEffect(LogPayload{
		Level:   level,
		Message: msg,
		Fields:  fields,
	})
}

func handleLog(e *saga.Execution, payload LogPayload) (any, error) {
	logger := e.Logger()

	fields := make([]zap.Field, 0, len(payload.Fields))
	for _, k := range slices.Sorted(maps.Keys(payload.Fields)) {
		fields = append(fields, zap.Any(k, payload.Fields[k]))
	}

	switch payload.Level {
	case LogInfo:
		logger.Info(payload.Message, fields...)
	case LogWarn:
		logger.Warn(payload.Message, fields...)
	case LogError:
		logger.Error(payload.Message, fields...)
	case LogDebug:
		logger.Debug(payload.Message, fields...)
	default:
		logger.Info(payload.Message, fields...)
	}
	return nil, nil
}
