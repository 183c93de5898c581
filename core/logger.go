package core

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var loggerInstance Logger = *NewDevelopmentLogger() // default to development logger

// SetLogger sets the global logger instance
func SetLogger(logger Logger) {
	loggerInstance = logger
}

// GetLogger retrieves the global logger instance
func GetLogger() *Logger {
	return &loggerInstance
}

type Logger struct {
	handlerFunc func(level string, msg string, attrs map[string]interface{})
	attrs       map[string]interface{}
}

func NewLogger(handler func(level string, msg string, attrs map[string]interface{})) *Logger {
	return &Logger{
		handlerFunc: handler,
		attrs:       make(map[string]interface{}),
	}
}

// levelRank orders level names; unknown names rank as INFO.
func levelRank(level string) int {
	switch strings.ToUpper(level) {
	case "TRACE":
		return 0
	case "DEBUG":
		return 1
	case "WARN", "WARNING":
		return 3
	case "ERROR":
		return 4
	case "FATAL":
		return 5
	case "PANIC":
		return 6
	default:
		return 2
	}
}

// NewDevelopmentLogger creates a new development logger with pretty console output
func NewDevelopmentLogger() *Logger {
	return NewConsoleLogger(os.Stdout, "DEBUG")
}

// NewConsoleLogger writes human readable lines to w, dropping entries below minLevel.
func NewConsoleLogger(w io.Writer, minLevel string) *Logger {
	threshold := levelRank(minLevel)
	handler := func(level string, msg string, attrs map[string]interface{}) {
		if levelRank(level) < threshold {
			return
		}
		timestamp := time.Now().Format(time.RFC3339)
		attrStr := ""
		if len(attrs) > 0 {
			keys := make([]string, 0, len(attrs))
			for k := range attrs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			attrStr = " |"
			for _, k := range keys {
				attrStr += fmt.Sprintf(" %s=%v", k, attrs[k])
			}
		}
		logLine := fmt.Sprintf("%s [%s] %s%s\n", timestamp, level, msg, attrStr)
		switch level {
		case "FATAL":
			fmt.Fprint(os.Stderr, logLine)
			os.Exit(1)
		case "PANIC":
			fmt.Fprint(os.Stderr, logLine)
			panic(msg)
		default:
			fmt.Fprint(w, logLine)
		}
	}

	return NewLogger(handler)
}

// NewProductionLogger emits one JSON object per entry through zerolog.
func NewProductionLogger(w io.Writer, minLevel string) *Logger {
	zl := zerolog.New(w).Level(zerologLevel(minLevel)).With().Timestamp().Logger()

	handler := func(level string, msg string, attrs map[string]interface{}) {
		var ev *zerolog.Event
		switch level {
		case "TRACE":
			ev = zl.Trace()
		case "DEBUG":
			ev = zl.Debug()
		case "WARN":
			ev = zl.Warn()
		case "ERROR":
			ev = zl.Error()
		case "FATAL":
			ev = zl.Fatal()
		case "PANIC":
			ev = zl.Panic()
		default:
			ev = zl.Info()
		}
		ev.Fields(attrs).Msg(msg)
	}

	return NewLogger(handler)
}

func zerologLevel(level string) zerolog.Level {
	switch levelRank(level) {
	case 0:
		return zerolog.TraceLevel
	case 1:
		return zerolog.DebugLevel
	case 3:
		return zerolog.WarnLevel
	case 4:
		return zerolog.ErrorLevel
	case 5:
		return zerolog.FatalLevel
	case 6:
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLoggerFromConfig returns the JSON handler for format "json" and the
// console handler otherwise. An empty level means INFO.
func NewLoggerFromConfig(level, format string) *Logger {
	if level == "" {
		level = "INFO"
	}
	if strings.EqualFold(format, "json") {
		return NewProductionLogger(os.Stdout, level)
	}
	return NewConsoleLogger(os.Stdout, level)
}

func (l *Logger) log(level string, msg string, args ...interface{}) {
	if l.handlerFunc != nil {
		if len(args) > 0 {
			// Detect slog-style key-value pairs: even number of args where
			// odd-positioned args (keys) are strings.
			if isKeyValuePairs(args) {
				attrs := make(map[string]interface{}, len(l.attrs)+len(args)/2)
				for k, v := range l.attrs {
					attrs[k] = v
				}
				for i := 0; i < len(args)-1; i += 2 {
					key, _ := args[i].(string)
					attrs[key] = args[i+1]
				}
				l.handlerFunc(level, msg, attrs)
				return
			}
			msg = fmt.Sprintf(msg, args...)
		}
		l.handlerFunc(level, msg, l.attrs)
	}
}

// isKeyValuePairs returns true if args look like slog-style key-value pairs:
// even count and every key (even index) is a string.
func isKeyValuePairs(args []interface{}) bool {
	if len(args)%2 != 0 {
		return false
	}
	for i := 0; i < len(args); i += 2 {
		if _, ok := args[i].(string); !ok {
			return false
		}
	}
	return true
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log("DEBUG", msg, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log("DEBUG", format, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log("INFO", msg, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log("INFO", format, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log("WARN", msg, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log("WARN", format, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log("ERROR", msg, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log("ERROR", format, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.log("FATAL", format, args...)
}

func (l *Logger) With(attrs map[string]interface{}) *Logger {
	combinedAttrs := make(map[string]interface{})
	for k, v := range l.attrs {
		combinedAttrs[k] = v
	}
	for k, v := range attrs {
		combinedAttrs[k] = v
	}
	return &Logger{
		handlerFunc: l.handlerFunc,
		attrs:       combinedAttrs,
	}
}

// Sync is a no-op; both handlers write synchronously.
func (l *Logger) Sync() error {
	return nil
}
