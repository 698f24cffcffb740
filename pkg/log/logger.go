package log

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/t-tomalak/logrus-easy-formatter"
	"moff.io/wemove/pkg/log/meta"
)

var logger *customLogger

// nolint:gochecknoinits
func init() {
	logger = newLogger()
}

type customLogger struct {
	*logrus.Logger
}

// SetLevel
// Set log level:
// DebugLevel = 0
// InfoLevel = 1
// WarnLevel = 2
// ErrorLevel = 3
func SetLevel(lvl int) {
	switch lvl {
	case 0:
		Info("log level set to DEBUG.")
		logger.Level = logrus.DebugLevel
	case 1:
		Info("log level set to INFO.")
		logger.Level = logrus.InfoLevel
	case 2:
		Info("log level set to WARN.")
		logger.Level = logrus.WarnLevel
	case 3:
		Info("log level set to ERROR.")
		logger.Level = logrus.ErrorLevel
	default:
		Info("log level set to INFO.")
		logger.Level = logrus.InfoLevel
	}
}

// SetOutput redirects the log output, mostly for tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func newLogger() *customLogger {
	logger := &logrus.Logger{
		Out:   os.Stderr,
		Level: logrus.InfoLevel,
		Formatter: &easy.Formatter{
			TimestampFormat: "01-02 15:04:05.000",
			LogFormat:       "[%lvl%]   [%time%]   -   %msg%\r\n",
		},
	}
	return &customLogger{logger}
}

// Debug
func Debug(content interface{}) {
	logger.Debug(content)
}

// Debugf
func Debugf(format string, args ...interface{}) {
	content := fmt.Sprintf(format, args...)
	logger.Debug(content)
}

// Info
func Info(content interface{}) {
	logger.Info(content)
}

// Infof
func Infof(format string, args ...interface{}) {
	content := fmt.Sprintf(format, args...)
	logger.Info(content)
}

// Warn
func Warn(content interface{}) {
	logger.Warn(content)
}

// Warnf
func Warnf(format string, args ...interface{}) {
	content := fmt.Sprintf(format, args...)
	logger.Warn(content)
}

// Error
func Error(content interface{}) {
	logger.Error(content)
}

// Errorf
func Errorf(format string, args ...interface{}) {
	content := fmt.Sprintf(format, args...)
	logger.Error(content)
}

// Fatal
func Fatal(content interface{}) {
	logger.Fatal(content)
}

// Fatalf
func Fatalf(format string, args ...interface{}) {
	content := fmt.Sprintf(format, args...)
	logger.Fatal(content)
}

// Debugc logs with the metadata stored in ctx prefixed to the message.
func Debugc(ctx context.Context, format string, args ...interface{}) {
	logger.Debug(withMeta(ctx, fmt.Sprintf(format, args...)))
}

// Infoc logs with the metadata stored in ctx prefixed to the message.
func Infoc(ctx context.Context, format string, args ...interface{}) {
	logger.Info(withMeta(ctx, fmt.Sprintf(format, args...)))
}

// Warnc logs with the metadata stored in ctx prefixed to the message.
func Warnc(ctx context.Context, format string, args ...interface{}) {
	logger.Warn(withMeta(ctx, fmt.Sprintf(format, args...)))
}

// Errorc logs with the metadata stored in ctx prefixed to the message.
func Errorc(ctx context.Context, format string, args ...interface{}) {
	logger.Error(withMeta(ctx, fmt.Sprintf(format, args...)))
}

func withMeta(ctx context.Context, content string) string {
	fields := meta.Fields(ctx)
	if len(fields) == 0 {
		return content
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString("[")
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprint(fields[k]))
		sb.WriteString("] ")
	}
	sb.WriteString(content)
	return sb.String()
}
