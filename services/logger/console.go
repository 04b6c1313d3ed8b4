package logsvc

import (
	"log"
	"strings"

	"github.com/trezcool/masomo-bff/core"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var levels = map[string]level{
	"debug":   levelDebug,
	"info":    levelInfo,
	"warn":    levelWarn,
	"warning": levelWarn,
	"error":   levelError,
}

// ConsoleLogger only prints. Used locally and in tests.
type ConsoleLogger struct {
	std *log.Logger
	min level
}

var _ core.Logger = (*ConsoleLogger)(nil)

// NewConsoleLogger prints messages at minLevel (debug, info, warn, error) and above.
// Unknown levels mean info.
func NewConsoleLogger(std *log.Logger, minLevel string) *ConsoleLogger {
	return &ConsoleLogger{std: std, min: parseLevel(minLevel)}
}

func parseLevel(s string) level {
	if lvl, ok := levels[strings.ToLower(s)]; ok {
		return lvl
	}
	return levelInfo
}

func (l ConsoleLogger) print(lvl level, prefix, msg string, args []interface{}) {
	if lvl < l.min {
		return
	}
	l.std.Println(prefix + msg)
	for _, arg := range args {
		l.std.Printf("%+v\n", arg)
	}
}

func (l ConsoleLogger) Debug(msg string, args ...interface{}) {
	l.print(levelDebug, "DEBUG ", msg, args)
}

func (l ConsoleLogger) Info(msg string, args ...interface{}) {
	l.print(levelInfo, "INFO ", msg, args)
}

func (l ConsoleLogger) Warn(msg string, args ...interface{}) {
	l.print(levelWarn, "WARN ", msg, args)
}

func (l ConsoleLogger) Error(msg string, args ...interface{}) {
	l.print(levelError, "ERROR ", msg, args)
}

func (l ConsoleLogger) Fatal(msg string, args ...interface{}) {
	l.print(levelError, "FATAL ", msg, args)
	l.std.Fatal(msg)
}
