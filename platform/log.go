package platform

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Hook appends every entry to a per-day file under logPath/<date>/<fileName>.log.
type Hook struct {
	mu       sync.Mutex
	writer   *os.File
	logPath  string
	fileName string
	fileDate string
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	line, err := entry.String()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if h.writer == nil || h.fileDate != today {
		if err := h.rotate(today); err != nil {
			return err
		}
	}
	_, err = h.writer.Write([]byte(line))
	return err
}

func (h *Hook) rotate(date string) error {
	if h.writer != nil {
		h.writer.Close()
	}
	dir := fmt.Sprintf("%s/%s", h.logPath, date)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return err
	}
	writer, err := os.OpenFile(fmt.Sprintf("%s/%s.log", dir, h.fileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	h.writer = writer
	h.fileDate = date
	return nil
}

type LogFormatter struct{}

func (m *LogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
	b.WriteString(fmt.Sprintf("[%s] [%s] %s\n", timestamp, entry.Level, entry.Message))
	return b.Bytes(), nil
}

// Logger is the application logger. It writes to stderr until InitLogger
// attaches the rotating file hook.
var Logger = newLogger()

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&LogFormatter{})
	logger.SetOutput(os.Stderr)
	return logger
}

// InitLogger sends the standard logrus logger (gin access log) and the
// application logger to daily files under logPath.
func InitLogger(logPath string, level string) {
	logrus.SetFormatter(&LogFormatter{})
	logrus.AddHook(&Hook{logPath: logPath, fileName: "gin"})

	if lvl, err := logrus.ParseLevel(level); err == nil {
		Logger.SetLevel(lvl)
		logrus.SetLevel(lvl)
	}
	Logger.AddHook(&Hook{logPath: logPath, fileName: "capstone"})
}

// SetOutput redirects the application logger, used by tests to silence it.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}
