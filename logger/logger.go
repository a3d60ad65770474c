// Package logger builds the process zap logger and carries the per-event
// correlation id through contexts.
package logger

import (
	"context"

	"go.uber.org/zap"
)

type key string

var eventIDKey key = "event_id"

// New returns a development logger for development and test environments
// and a JSON production logger otherwise.
func New(env string) (*zap.Logger, error) {
	switch env {
	case "development", "test":
		return zap.NewDevelopment()
	default:
		return zap.NewProduction()
	}
}

func WithEventID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, eventIDKey, id)
}

func EventIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(eventIDKey).(string)
	return id, ok
}
