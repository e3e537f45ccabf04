// Package logging configures the run logger: colored console output on
// stderr plus a plaintext run.log inside each report output directory.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing human-readable lines to stderr.
func New(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
	return log
}

// fileHook duplicates every entry into a plaintext log file without color codes.
type fileHook struct {
	file      *os.File
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return fmt.Errorf("format entry: %w", err)
	}
	_, err = h.file.Write(line)
	return err
}

// AttachFile adds a run.log file sink under outputDir. The returned closer
// must be called when the run finishes.
func AttachFile(log *logrus.Logger, outputDir string) (func() error, error) {
	path := filepath.Join(outputDir, "run.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open run.log: %w", err)
	}
	log.AddHook(&fileHook{
		file: f,
		formatter: &logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		},
	})
	return f.Close, nil
}
