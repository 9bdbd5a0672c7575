package worker

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

var workerDebugEnabled = strings.EqualFold(os.Getenv("RAGCHAT_WORKER_DEBUG"), "1")

// debugLog promotes worker lifecycle events to info level when RAGCHAT_WORKER_DEBUG=1.
func debugLog(logger *slog.Logger, msg string, args ...any) {
	level := slog.LevelDebug
	if workerDebugEnabled {
		level = slog.LevelInfo
	}
	logger.Log(context.Background(), level, msg, args...)
}
