package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldRunID is the structured log field key for the pipeline run id.
	FieldRunID = "run_id"
	// FieldSource is the structured log field key for a source id.
	FieldSource = "source"
	// FieldSourceType is the structured log field key for a source adapter type.
	FieldSourceType = "source_type"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields safely attaches the provided fields to the logger, defaulting to
// a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// RunFields describes a pipeline run.
func RunFields(runID, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldRunID, Value: runID},
		StringField{Key: FieldModel, Value: model},
	)
}

// SourceFields describes a configured source.
func SourceFields(id, kind string) []zap.Field {
	return StringFields(
		StringField{Key: FieldSource, Value: id},
		StringField{Key: FieldSourceType, Value: kind},
	)
}

// WithRun attaches the run fields to logger.
func WithRun(logger *zap.Logger, runID, model string) *zap.Logger {
	return WithFields(logger, RunFields(runID, model)...)
}
