package logging

import (
	"context"
	"log/slog"

	"assetizer/internal/services"
)

// WithContext attaches asset, stage, and request identifiers carried on the
// context to the logger so stage code does not repeat them on every call.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return nil
	}
	if assetID, ok := services.AssetIDFromContext(ctx); ok {
		logger = logger.With(String(FieldAsset, assetID))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		logger = logger.With(String(FieldStage, stage))
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		logger = logger.With(String(FieldRequest, requestID))
	}
	return logger
}
