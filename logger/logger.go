// Package logger is the level-filtered, line-oriented event emitter the
// rest of resque-pool-go logs through. It keeps the shape of
// erl.ILogger — a small interface satisfied by one concrete type,
// constructed once — but backs it with zap rather than the standard
// library's log.Logger, and adds the contextual {key} interpolation and
// resque-pool-<role>[<app>][<pid>] line prefix spec.md §4.3 calls for.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is a total order on severities, emergency highest (most urgent,
// always logged) down to debug lowest (only logged when VVERBOSE).
type Level int

const (
	Emergency Level = iota
	Alert
	Critical
	Error
	Warning
	Notice
	Info
	Debug
)

var levelNames = map[Level]string{
	Emergency: "emergency",
	Alert:     "alert",
	Critical:  "critical",
	Error:     "error",
	Warning:   "warning",
	Notice:    "notice",
	Info:      "info",
	Debug:     "debug",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// toZap maps this package's emergency..debug order onto zap's levels;
// zap has no native "emergency"/"alert"/"critical" distinction above
// error, so they collapse onto zap's ErrorLevel (zap's DPanic, Panic and
// Fatal levels are not used here).
func (l Level) toZap() zapcore.Level {
	switch {
	case l <= Error:
		return zapcore.ErrorLevel
	case l == Warning:
		return zapcore.WarnLevel
	case l == Notice || l == Info:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// ILogger is the contract the rest of resque-pool-go logs through —
// deliberately the same shape as erl.ILogger (Println/Printf), so the
// actor runtime's own DebugPrintln/DebugPrintf keep working unmodified
// against a Logger assigned to erl.Logger.
type ILogger interface {
	Println(v ...any)
	Printf(format string, v ...any)
}

// Logger is the concrete event emitter: one line per event to stdout,
// prefixed resque-pool-<role><app-tag>[<pid>], filtered by an
// atomically-adjustable threshold level.
type Logger struct {
	sugar    *zap.SugaredLogger
	level    *zap.AtomicLevel
	appTag   string
	pid      int
	role     string // default role, overridable per event via context
}

// New constructs a Logger writing to stdout (spec.md §6, "one per line,
// newline-terminated, to standard output"), at the given initial
// threshold. appName may be empty (produces no [<app>] segment).
func New(threshold Level, appName string) *Logger {
	atomicLevel := zap.NewAtomicLevelAt(threshold.toZap())

	encoderCfg := zapcore.EncoderConfig{
		MessageKey: "msg",
		LineEnding: zapcore.DefaultLineEnding,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stdout), atomicLevel)
	zl := zap.New(core)

	return &Logger{
		sugar:  zl.Sugar(),
		level:  &atomicLevel,
		appTag: appName,
		pid:    os.Getpid(),
		role:   "worker",
	}
}

// SetLevel adjusts the threshold at runtime — backs the LOGGING/VERBOSE
// and VVERBOSE environment switches (spec.md §4.2/§6).
func (l *Logger) SetLevel(threshold Level) {
	l.level.SetLevel(threshold.toZap())
}

// WithRole returns a Logger that shares this one's sink and level but
// logs under a different role segment — the supervisor logs as
// "manager" while the default is "worker" (spec.md §4.3).
func (l *Logger) WithRole(role string) *Logger {
	clone := *l
	clone.role = role
	return &clone
}

func (l *Logger) prefix() string {
	tag := ""
	if l.appTag != "" {
		tag = "[" + l.appTag + "]"
	}
	return fmt.Sprintf("resque-pool-%s%s[%d]", l.role, tag, l.pid)
}

// Log emits one line at the given level: "<prefix> <message>", with
// message's {key} placeholders substituted from ctx (spec.md §4.3).
// Below-threshold calls are cheap: zap's AtomicLevel check short-circuits
// before any interpolation happens.
func (l *Logger) Log(level Level, message string, ctx map[string]any) {
	if !l.level.Enabled(level.toZap()) {
		return
	}
	line := l.prefix() + " " + interpolate(message, ctx)
	switch level.toZap() {
	case zapcore.ErrorLevel:
		l.sugar.Error(line)
	case zapcore.WarnLevel:
		l.sugar.Warn(line)
	case zapcore.DebugLevel:
		l.sugar.Debug(line)
	default:
		l.sugar.Info(line)
	}
}

func interpolate(template string, ctx map[string]any) string {
	if len(ctx) == 0 {
		return template
	}
	out := template
	for k, v := range ctx {
		out = strings.ReplaceAll(out, "{"+k+"}", fmt.Sprint(v))
	}
	return out
}

// Println satisfies ILogger (and erl.ILogger) at Info level, with no
// context interpolation — used where callers just want a plain line.
func (l *Logger) Println(v ...any) {
	l.Log(Info, fmt.Sprint(v...), nil)
}

// Printf satisfies ILogger (and erl.ILogger) at Info level.
func (l *Logger) Printf(format string, v ...any) {
	l.Log(Info, fmt.Sprintf(format, v...), nil)
}

// Errorf logs at Error level.
func (l *Logger) Errorf(format string, v ...any) {
	l.Log(Error, fmt.Sprintf(format, v...), nil)
}

// Sync flushes any buffered log entries; call before process exit.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

// LevelFromEnv applies spec.md §4.2/§6's LOGGING/VERBOSE/VVERBOSE
// environment switches: normal (Warning) by default, raised to Notice by
// LOGGING/VERBOSE, raised further to Debug by VVERBOSE.
func LevelFromEnv() Level {
	level := Warning
	if os.Getenv("LOGGING") != "" || os.Getenv("VERBOSE") != "" {
		level = Notice
	}
	if os.Getenv("VVERBOSE") != "" {
		level = Debug
	}
	return level
}
