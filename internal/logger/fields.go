package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	FieldUserID      = "user_id"
	FieldProvider    = "provider"
	FieldFingerprint = "fingerprint"
	FieldJobID       = "job_id"
	FieldRunID       = "run_id"
	FieldRunState    = "run_state"
	// FieldModelProvider is the structured log field key for the AI provider name.
	FieldModelProvider = "ai_provider"
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

// WithFields safely attaches the provided fields to the logger.
// A nil logger is replaced with a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	logger = OrNop(logger)
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// RunFields describes a single user's pipeline run.
func RunFields(userID, runID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldUserID, Value: userID},
		StringField{Key: FieldRunID, Value: runID},
	)
}

// SourceFields describes a connector call. Empty values are dropped.
func SourceFields(provider, fingerprint string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldFingerprint, Value: fingerprint},
	)
}

// ModelFields returns standard zap fields that describe the AI provider and model.
func ModelFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldModelProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}
