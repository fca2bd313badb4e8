package matrix

import (
	"sync"
	"testing"
)

// Logger interface for logging operations
type Logger interface {
	LogDebug(message string, keyValuePairs ...any)
	LogInfo(message string, keyValuePairs ...any)
	LogWarn(message string, keyValuePairs ...any)
	LogError(message string, keyValuePairs ...any)
}

// testLogger routes client logging into the test output
type testLogger struct {
	tb testing.TB

	mu   sync.Mutex
	done bool
}

// NewTestLogger creates a Logger that writes through tb.Logf. Messages logged by
// background requests after the test finished are dropped.
func NewTestLogger(tb testing.TB) Logger {
	l := &testLogger{tb: tb}
	tb.Cleanup(func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.done = true
	})
	return l
}

func (l *testLogger) logf(level, message string, keyValuePairs []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return
	}
	l.tb.Logf("[%s] %s %v", level, message, keyValuePairs)
}

func (l *testLogger) LogDebug(message string, keyValuePairs ...any) {
	l.logf("DEBUG", message, keyValuePairs)
}

func (l *testLogger) LogInfo(message string, keyValuePairs ...any) {
	l.logf("INFO", message, keyValuePairs)
}

func (l *testLogger) LogWarn(message string, keyValuePairs ...any) {
	l.logf("WARN", message, keyValuePairs)
}

func (l *testLogger) LogError(message string, keyValuePairs ...any) {
	l.logf("ERROR", message, keyValuePairs)
}
