/**
 * @description
 * This file builds the structured slog.Logger used throughout the
 * service and the request-ID convention attached to every sign/verify
 * call for log correlation.
 *
 * Key features:
 * - JSON Structured Logging: matches the
 *   `slog.New(slog.NewJSONHandler(os.Stdout, nil))` construction the
 *   teacher's HTTP and gRPC entrypoints both use.
 * - Request-ID Correlation: WithRequestID/RequestID thread a single
 *   UUID through every log line of one sign/verify call.
 *
 * @dependencies
 * - github.com/google/uuid: correlation ID generation.
 */

package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

type ctxKey int

const requestIDKey ctxKey = iota

/**
 * @description
 * New returns a JSON-handler logger writing to stdout.
 *
 * @param level The minimum level to emit.
 * @returns A *slog.Logger ready for use across the service.
 */
func New(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

/**
 * @description
 * WithRequestID returns a context carrying a fresh correlation ID and
 * the ID itself, so callers can attach it to every log line for one
 * sign/verify call.
 *
 * @param ctx The parent context.
 * @returns A child context carrying the new request ID.
 * @returns The request ID itself, for direct use in the first log line.
 */
func WithRequestID(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return context.WithValue(ctx, requestIDKey, id), id
}

// RequestID extracts the correlation ID stashed by WithRequestID, or
// the empty string if none is present.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
