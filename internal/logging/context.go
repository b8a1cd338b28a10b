package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
)

type requestLoggerContextKey struct{}

var fallbackLogger = sync.OnceValue(func() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil)).With(slog.String("logger", "fallback"))
})

// FromContext returns the logger attached to ctx, or a fallback logger on stdout
func FromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(requestLoggerContextKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return fallbackLogger()
	}
	return logger
}

func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, requestLoggerContextKey{}, logger)
}

func AddMetaToContext(ctx context.Context, args ...slog.Attr) context.Context {
	logger := FromContext(ctx)

	anySlice := make([]any, len(args))
	for i, arg := range args {
		anySlice[i] = arg
	}

	return AddToContext(ctx, logger.With(anySlice...))
}

// AddCourtToContext tags the logger with the club, and with the court when courtID is positive
func AddCourtToContext(ctx context.Context, clubID, courtID int) context.Context {
	if courtID <= 0 {
		return AddMetaToContext(ctx, slog.Int("clubID", clubID))
	}
	return AddMetaToContext(ctx, slog.Int("clubID", clubID), slog.Int("courtID", courtID))
}
