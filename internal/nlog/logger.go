// Package nlog is the structured logger used across this module: leveled
// output, a colorized terminal handler, and call-site annotation on
// Crit-level records.
package nlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is a logging priority, higher values are less severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

var levelColor = map[Lvl]color.Attribute{
	LvlCrit:  color.FgMagenta,
	LvlError: color.FgRed,
	LvlWarn:  color.FgYellow,
	LvlInfo:  color.FgGreen,
	LvlDebug: color.FgCyan,
	LvlTrace: color.FgWhite,
}

// Logger emits leveled, structured records. ctx pairs are alternating
// key/value; an odd count is padded with a "LOGERR" marker rather than
// panicking mid-request.
type Logger interface {
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
	New(ctx ...interface{}) Logger
}

type logger struct {
	ctx []interface{}
	h   *handler
}

type handler struct {
	mu       sync.Mutex
	out      io.Writer
	colorize bool
	minLvl   Lvl
}

var root = &logger{h: defaultHandler()}

func defaultHandler() *handler {
	w := os.Stderr
	return &handler{
		out:      colorable.NewColorable(w),
		colorize: isatty.IsTerminal(w.Fd()),
		minLvl:   LvlInfo,
	}
}

// Root returns the module-wide root logger.
func Root() Logger { return root }

// SetMinLevel adjusts the verbosity of the root handler.
func SetMinLevel(l Lvl) { root.h.mu.Lock(); root.h.minLvl = l; root.h.mu.Unlock() }

// New returns a child logger with additional context.
func (l *logger) New(ctx ...interface{}) Logger {
	nctx := make([]interface{}, 0, len(l.ctx)+len(ctx))
	nctx = append(nctx, l.ctx...)
	nctx = append(nctx, ctx...)
	return &logger{ctx: nctx, h: l.h}
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	if lvl > l.h.minLvl {
		return
	}
	all := make([]interface{}, 0, len(l.ctx)+len(ctx))
	all = append(all, l.ctx...)
	all = append(all, ctx...)
	if len(all)%2 != 0 {
		all = append(all, "LOGERR")
	}
	if lvl == LvlCrit {
		all = append(all, "stack", callers())
	}

	l.h.mu.Lock()
	defer l.h.mu.Unlock()

	ts := time.Now().Format("2006-01-02T15:04:05-0700")
	prefix := fmt.Sprintf("%s [%-5s] %s", ts, lvl, msg)
	if l.h.colorize {
		prefix = color.New(levelColor[lvl]).Sprint(prefix)
	}
	fmt.Fprint(l.h.out, prefix)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(l.h.out, " %v=%v", all[i], all[i+1])
	}
	fmt.Fprintln(l.h.out)
}

func callers() string {
	c := stack.Trace().TrimRuntime()
	if len(c) > 6 {
		c = c[:6]
	}
	return fmt.Sprintf("%+v", c)
}

// New is a package-level shorthand for Root().New(ctx...).
func New(ctx ...interface{}) Logger { return root.New(ctx...) }

func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }
