package log

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type colorizer func(...interface{}) string

var (
	green  colorizer
	yellow colorizer
	red    colorizer
)

// Mirror receives a copy of the messages that should also show up on the
// result dashboard of the running scenario.
type Mirror interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

var (
	lock     = &sync.Mutex{}
	hjLog    *logrus.Logger
	mirror   Mirror
	testName string
)

// Hook color codes messages written to the console.
type Hook struct{}

// NewHook returns a color formatting hook.
func NewHook() *Hook {
	return &Hook{}
}

func successMessage(msg string) bool {
	for _, s := range []string{"pass", "validated", "successfully"} {
		if strings.Contains(strings.ToLower(msg), s) {
			return true
		}
	}
	return false
}

func errorMessage(msg string) bool {
	for _, s := range []string{"failed", "error"} {
		if strings.Contains(strings.ToLower(msg), s) {
			return true
		}
	}
	return false
}

// Fire color codes the output.
func (hook *Hook) Fire(entry *logrus.Entry) error {
	if entry.Level < logrus.WarnLevel {
		entry.Message = red(entry.Message)
	} else if entry.Level == logrus.WarnLevel {
		entry.Message = yellow(entry.Message)
	} else {
		if successMessage(entry.Message) {
			entry.Message = green(entry.Message)
		} else if errorMessage(entry.Message) {
			entry.Message = red(entry.Message)
		}
	}
	return nil
}

// Levels returns the various logrus levels this hooks into.
func (hook *Hook) Levels() []logrus.Level {
	return []logrus.Level{
		logrus.DebugLevel,
		logrus.InfoLevel,
		logrus.WarnLevel,
		logrus.ErrorLevel,
		logrus.FatalLevel,
	}
}

func init() {
	green = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red = color.New(color.FgRed).SprintFunc()

	hjLog = GetLogInstance()
}

// New returns a logger writing harness formatted lines to stdout
func New() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&MyFormatter{})
	l.Out = io.MultiWriter(os.Stdout)
	return l
}

// GetLogInstance returns the logrus instance
func GetLogInstance() *logrus.Logger {
	if hjLog == nil {
		lock.Lock()
		defer lock.Unlock()
		if hjLog == nil {
			hjLog = New()
		}
	}
	return hjLog
}

// SetLoglevel sets the level by name, unknown names fall back to debug
func SetLoglevel(logLevel string) {
	switch strings.ToLower(logLevel) {
	case "debug":
		hjLog.Level = logrus.DebugLevel
	case "info":
		hjLog.Level = logrus.InfoLevel
	case "error":
		hjLog.Level = logrus.ErrorLevel
	case "warn":
		hjLog.Level = logrus.WarnLevel
	case "trace":
		hjLog.Level = logrus.TraceLevel
	default:
		hjLog.Level = logrus.DebugLevel
	}
}

// EnableColors adds the console color hook
func EnableColors() {
	hjLog.AddHook(NewHook())
}

// SetFileOutput adds output destination for logging
func SetFileOutput(logger *lumberjack.Logger) {
	if logger != nil {
		hjLog.Out = io.MultiWriter(hjLog.Out, logger)
		hjLog.Infof("Log Dir: %s", logger.Filename)
	}
}

// SetDefaultOutput sets default output
func SetDefaultOutput(logger *lumberjack.Logger) {
	if logger != nil {
		hjLog.Out = io.MultiWriter(os.Stdout, logger)
		return
	}
	hjLog.Out = os.Stdout
}

// SetOutput replaces the output writer. Used by tests.
func SetOutput(w io.Writer) {
	hjLog.Out = w
}

// NewFileLogger returns a rotating file writer for dir/name
func NewFileLogger(dir, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   fmt.Sprintf("%s/%s", strings.TrimRight(dir, "/"), name),
		MaxSize:    100,
		MaxBackups: 10,
		MaxAge:     30,
		Compress:   true,
	}
}

// SetTestName tags every following line with the scenario name. An empty
// name removes the tag.
func SetTestName(name string) {
	lock.Lock()
	defer lock.Unlock()
	testName = name
}

// SetMirror sets where InfoD and the warn/error helpers copy their messages.
// nil detaches the mirror.
func SetMirror(m Mirror) {
	lock.Lock()
	defer lock.Unlock()
	mirror = m
}

func currentMirror() Mirror {
	lock.Lock()
	defer lock.Unlock()
	return mirror
}

// MyFormatter writes `<time>:[LEVEL] [test] message` lines
type MyFormatter struct{}

// Format implements logrus.Formatter
func (mf *MyFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}
	level := strings.ToUpper(entry.Level.String())

	lock.Lock()
	name := testName
	lock.Unlock()

	var writeString string
	if name != "" {
		writeString = fmt.Sprintf("%s:[%s] [%s] %s\n",
			entry.Time.Format("2006-01-02 15:04:05 -0700"), level, name, entry.Message)
	} else {
		writeString = fmt.Sprintf("%s:[%s] %s\n",
			entry.Time.Format("2006-01-02 15:04:05 -0700"), level, entry.Message)
	}
	b.WriteString(writeString)
	return b.Bytes(), nil
}

func callerFormat(format string) string {
	pc, _, line, _ := runtime.Caller(2)
	callerFuncSlice := strings.Split(runtime.FuncForPC(pc).Name(), "/")
	callerFunc := fmt.Sprintf("%s:#%d", callerFuncSlice[len(callerFuncSlice)-1], line)
	return fmt.Sprintf("[%s] - %s", callerFunc, format)
}

// Errorf logs an error and copies it to the dashboard
func Errorf(format string, args ...interface{}) {
	extendedFormat := callerFormat(format)
	if m := currentMirror(); m != nil {
		m.Errorf(format, args...)
	}
	hjLog.Errorf(extendedFormat, args...)
}

// Warnf logs a warning and copies it to the dashboard
func Warnf(format string, args ...interface{}) {
	extendedFormat := callerFormat(format)
	if m := currentMirror(); m != nil {
		m.Warnf(format, args...)
	}
	hjLog.Warningf(extendedFormat, args...)
}

func Infof(format string, args ...interface{}) {
	hjLog.Infof(callerFormat(format), args...)
}

// InfoD logs to both the console and the dashboard
func InfoD(format string, args ...interface{}) {
	if m := currentMirror(); m != nil {
		m.Infof(format, args...)
	}
	hjLog.Infof(format, args...)
}

func Debugf(format string, args ...interface{}) {
	hjLog.Debugf(callerFormat(format), args...)
}

func Tracef(format string, args ...interface{}) {
	hjLog.Tracef(callerFormat(format), args...)
}

func Error(args ...interface{}) {
	msg := fmt.Sprint(args...)
	if m := currentMirror(); m != nil {
		m.Errorf("%s", msg)
	}
	hjLog.Error(callerFormat(msg))
}

func Warn(args ...interface{}) {
	msg := fmt.Sprint(args...)
	if m := currentMirror(); m != nil {
		m.Warnf("%s", msg)
	}
	hjLog.Warn(callerFormat(msg))
}

func Info(args ...interface{}) {
	hjLog.Info(callerFormat(fmt.Sprint(args...)))
}
