// Package vtxlog wraps logrus the way firestige-Otus's otus-packet/pkg/log
// wraps it: a package-level *logrus.Logger behind a small facade, so the
// transport logs through one place that can be reconfigured (level,
// formatter, rotation) without touching call sites. The colored
// banner/section helpers keep the texture of the teacher's own
// pkg/logger, just rendered through logrus instead of hand-rolled ANSI
// codes.
package vtxlog

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	"gopkg.in/natefinch/lumberjack.v2"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)
}

// FileOptions configures lumberjack-backed rotation for the log file
// output, mirroring Otus's appender_file.go.
type FileOptions struct {
	Filename   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// SetLevel sets the minimum log level by name ("debug", "info", "warn",
// "error").
func SetLevel(levelName string) error {
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("vtxlog: %w", err)
	}
	log.SetLevel(level)
	return nil
}

// AddFileOutput adds a rotating file writer alongside the existing output
// (stdout by default).
func AddFileOutput(opts FileOptions) {
	fileWriter := &lumberjack.Logger{
		Filename:   opts.Filename,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	log.SetOutput(io.MultiWriter(log.Out, fileWriter))
}

// Logger returns the package-level logrus.Logger for callers that want a
// *logrus.Entry with fields (e.g. WithField("session", id)).
func Logger() *logrus.Logger { return log }

func Debugf(format string, args ...interface{}) {
	if log.IsLevelEnabled(logrus.DebugLevel) {
		log.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{})  { log.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { log.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }

// Section prints a banner-style section header at Info level, in the spirit
// of the teacher's pkg/logger.Section.
func Section(title string) {
	log.Infof("==== %s ====", title)
}
