package room

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// AttemptLogger appends every answer attempt to w as one JSON object per
// line. Writes are serialized; the log survives process restarts when w is
// an append-mode file.
type AttemptLogger struct {
	mu     sync.Mutex
	w      io.Writer
	logger *slog.Logger
	now    func() time.Time
}

func NewAttemptLogger(w io.Writer, logger *slog.Logger) *AttemptLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttemptLogger{w: w, logger: logger, now: time.Now}
}

// Record implements the Options.OnAttempt hook.
func (l *AttemptLogger) Record(a Attempt) {
	entry := struct {
		Time time.Time `json:"time"`
		Attempt
	}{Time: l.now().UTC(), Attempt: a}

	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("attempt log marshal failed", "error", err)
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(data); err != nil {
		l.logger.Error("attempt log write failed", "error", err)
	}
}
