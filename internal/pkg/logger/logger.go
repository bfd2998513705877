package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// Logger provides structured JSON logging with optional PII redaction.
// A Logger is safe for concurrent use.
type Logger struct {
	mu        sync.RWMutex // guards level and redactPII
	level     Level
	out       io.Writer
	redactPII bool
	base      []interface{}
}

// New creates a Logger writing JSON lines to w. A nil writer means stderr.
func New(w io.Writer, level Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{level: level, out: w, redactPII: true}
}

var defaultLogger = New(os.Stderr, INFO)

// Default returns the process-wide logger.
func Default() *Logger { return defaultLogger }

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.SetLevel(l) }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) { defaultLogger.SetRedactPII(r) }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

// SetRedactPII toggles redaction on this logger.
func (l *Logger) SetRedactPII(r bool) {
	l.mu.Lock()
	l.redactPII = r
	l.mu.Unlock()
}

// SetLevel changes the minimum level of this logger.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) settings() (Level, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level, l.redactPII
}

// With returns a child logger that adds the given key/value pairs to every entry.
// The child shares the parent's writer.
func (l *Logger) With(fields ...interface{}) *Logger {
	base := make([]interface{}, 0, len(l.base)+len(fields))
	base = append(base, l.base...)
	base = append(base, fields...)
	level, redact := l.settings()
	return &Logger{level: level, out: l.out, redactPII: redact, base: base}
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

// writeMu serializes writes from every logger, children included, so lines
// from concurrent handlers never interleave on a shared writer.
var writeMu sync.Mutex

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	threshold, redact := l.settings()
	if level < threshold {
		return
	}

	entry := map[string]interface{}{
		"time":  time.Now().UTC().Format(time.RFC3339),
		"level": levelNames[level],
		"msg":   msg,
	}

	all := fields
	if len(l.base) > 0 {
		all = append(append(make([]interface{}, 0, len(l.base)+len(fields)), l.base...), fields...)
	}

	// Parse key-value pairs from fields
	for i := 0; i < len(all)-1; i += 2 {
		key := fmt.Sprintf("%v", all[i])
		val := fmt.Sprintf("%v", all[i+1])
		if redact {
			val = redactPIIValue(key, val)
		}
		entry[key] = val
	}
	if len(all)%2 == 1 {
		entry["!BADKEY"] = fmt.Sprintf("%v", all[len(all)-1])
	}

	data, _ := json.Marshal(entry)
	writeMu.Lock()
	fmt.Fprintln(l.out, string(data))
	writeMu.Unlock()
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

var tokenParamRegex = regexp.MustCompile(`(token=)[^&"\s]+`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "token") || strings.Contains(key, "api_key") || strings.Contains(key, "secret") {
		return RedactSecret(val)
	}
	if strings.Contains(key, "email") || strings.Contains(key, "recipient") || key == "to" {
		return RedactEmail(val)
	}
	val = tokenParamRegex.ReplaceAllString(val, "${1}***")
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
