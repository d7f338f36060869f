package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/mattn/go-isatty"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"

	"github.com/mensylisir/xmbuild/common"
)

// Log is the global build logger.
var Log = &BuildLog{Logger: newConsoleLogger(os.Stdout, false, logrus.InfoLevel)}

// BuildLog wraps a logrus.Logger with installation-scoped helpers.
type BuildLog struct {
	*logrus.Logger
}

// Options configures a BuildLog.
type Options struct {
	// Dir receives a rotating "<AppName>.log" when set.
	Dir     string
	Verbose bool
	Level   logrus.Level
	// Console is where human-facing output goes. Defaults to os.Stdout; nil with Quiet discards it.
	Console io.Writer
	Quiet   bool
}

var fieldOrder = []string{
	common.RunID, common.EasyblockName, common.StepName, common.StrategyName, common.CommandField,
}

// InitGlobalLogger replaces Log with a logger built from opts.
func InitGlobalLogger(opts Options) error {
	l, err := New(opts)
	if err != nil {
		return err
	}
	Log = l
	return nil
}

// New builds a BuildLog. Console output is colored only when it is a terminal; the log file is
// never colored and always carries the caller.
func New(opts Options) (*BuildLog, error) {
	level := opts.Level
	if opts.Verbose {
		level = logrus.DebugLevel
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	if opts.Quiet {
		console = io.Discard
	}
	logger := newConsoleLogger(console, opts.Verbose, level)

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, common.FileMode0755); err != nil {
			return nil, fmt.Errorf("failed to create log output directory %s: %w", opts.Dir, err)
		}
		logFilePath := filepath.Join(opts.Dir, common.AppName+".log")
		writer, err := rotatelogs.New(
			logFilePath+".%Y%m%d",
			rotatelogs.WithLinkName(logFilePath),
			rotatelogs.WithMaxAge(7*24*time.Hour),
			rotatelogs.WithRotationTime(24*time.Hour),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize rotatelogs for %s: %w", logFilePath, err)
		}
		fileFormatter := &Formatter{
			TimestampFormat:        "2006-01-02 15:04:05.000 MST",
			NoColors:               true,
			DisplayLevelName:       ShowAll,
			FieldsDisplayWithOrder: fieldOrder,
			CustomCallerFormatter: func(frame *runtime.Frame) string {
				return fmt.Sprintf("[%s:%d]", filepath.Base(frame.File), frame.Line)
			},
		}
		writers := lfshook.WriterMap{}
		for _, lvl := range logrus.AllLevels {
			writers[lvl] = writer
		}
		logger.SetReportCaller(true)
		logger.Hooks.Add(lfshook.NewHook(writers, fileFormatter))
	}
	return &BuildLog{Logger: logger}, nil
}

func newConsoleLogger(out io.Writer, verbose bool, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	display := ShowAboveWarn
	if verbose {
		display = ShowAll
	}
	logger.SetFormatter(&Formatter{
		TimestampFormat:        "15:04:05",
		NoColors:               !IsTerminal(out),
		DisplayLevelName:       display,
		DisableCaller:          true,
		FieldsDisplayWithOrder: fieldOrder,
		MaxFieldValueLength:    120,
	})
	logger.SetOutput(out)
	return logger
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ForRun returns an entry carrying the run id and easyblock name of one installation.
func (l *BuildLog) ForRun(runID, easyblock string) *logrus.Entry {
	return l.WithFields(logrus.Fields{common.RunID: runID, common.EasyblockName: easyblock})
}

// ForStep narrows entry to a lifecycle step.
func ForStep(entry *logrus.Entry, step string) *logrus.Entry {
	return entry.WithField(common.StepName, step)
}

// ForStrategy narrows entry to a generic build strategy.
func ForStrategy(entry *logrus.Entry, strategy string) *logrus.Entry {
	return entry.WithField(common.StrategyName, strategy)
}

// Discard returns an entry whose output is thrown away, for tests and library callers without a logger.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
