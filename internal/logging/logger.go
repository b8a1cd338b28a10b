package logging

import (
	"io"
	"log/slog"
)

// NewRootLogger returns a JSON logger tagged with the instance id.
//
// When googleCloudProject is set, records logged with a traced context are
// linked to their trace in Google Cloud.
func NewRootLogger(w io.Writer, instanceID string, googleCloudProject string) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(w, nil)
	if googleCloudProject != "" {
		handler = NewGoogleCloudTracingLogHandler(handler, googleCloudProject)
	}
	return slog.New(handler).With(slog.String("instanceID", instanceID))
}
