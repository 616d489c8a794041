package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	fileName    = "filler.log"
	maxFileSize = 5 << 20 // 5 MB
	maxValueLen = 200
	truncSuffix = "…"
)

var (
	mu   sync.Mutex
	file *os.File
)

// DefaultDir returns FILLER_LOG_DIR or ~/.local/share/filler.
func DefaultDir() string {
	if dir := os.Getenv("FILLER_LOG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, ".local", "share", "filler")
}

// Init opens the log file for appending. Call once at startup.
// A file over 5 MB is rotated to .log.1 first.
// All log calls are no-ops until Init succeeds.
func Init(dir string) error {
	path := filepath.Join(dir, fileName)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil && info.Size() > maxFileSize {
		os.Rename(path, path+".1")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	mu.Lock()
	if file != nil {
		file.Close()
	}
	file = f
	mu.Unlock()
	return nil
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
}

// Info logs a structured event line.
//
//	applog.Info("pipeline.topic", "index", 3, "outcome", "ready")
//	applog.Info("cache.hit", "kind", "summary", "title", title)
func Info(event string, kv ...any) {
	write("INFO", event, nil, kv)
}

// Warn logs a recoverable problem.
func Warn(event string, kv ...any) {
	write("WARN", event, nil, kv)
}

// Error logs an event with an error.
//
//	applog.Error("wiki.search", err, "query", q)
func Error(event string, err error, kv ...any) {
	write("ERROR", event, err, kv)
}

// Run tags every line it writes with a run id, so the lines of one
// pipeline pass or websocket session can be grepped together.
type Run struct {
	ID   string
	Kind string
}

// NewRun starts a tagged logger for one unit of work.
func NewRun(kind string) Run {
	return Run{ID: uuid.NewString(), Kind: kind}
}

func (r Run) Info(event string, kv ...any) {
	write("INFO", event, nil, r.tag(kv))
}

func (r Run) Error(event string, err error, kv ...any) {
	write("ERROR", event, err, r.tag(kv))
}

func (r Run) tag(kv []any) []any {
	if r.ID == "" {
		return kv
	}
	return append([]any{r.Kind, r.ID}, kv...)
}

func write(level, event string, err error, kv []any) {
	mu.Lock()
	f := file
	mu.Unlock()
	if f == nil {
		return
	}

	line := format(time.Now(), level, event, err, kv)

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.WriteString(line)
	}
}

func format(now time.Time, level, event string, err error, kv []any) string {
	var b strings.Builder
	b.WriteString(now.UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteByte(' ')
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(event)

	if err != nil {
		b.WriteString(" err=")
		b.WriteString(quote(err.Error()))
	}

	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteByte(' ')
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteByte('=')
		b.WriteString(quote(fmt.Sprint(kv[i+1])))
	}
	b.WriteByte('\n')
	return b.String()
}

func quote(s string) string {
	if len(s) > maxValueLen {
		s = s[:maxValueLen] + truncSuffix
	}
	if strings.ContainsAny(s, " \t\n\"") {
		return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
	}
	return s
}
