package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Loggers bundles the four *log.Logger handles SPEC_FULL.md's ambient
// stack calls for: InfoLog/ErrorLog mirror the teacher's setupLogging,
// DebugLog is opened alongside them (no code path writes to it, and
// debugEnabled has no caller), and TickLog is written only
// by the simulation thread so tick-rate logging never contends with
// request logging on the other three.
type Loggers struct {
	Info  *log.Logger
	Error *log.Logger
	Debug *log.Logger
	Tick  *log.Logger
}

// setupLogging opens the four log files under dir, creating it if
// missing, exactly like the teacher's utils.go:setupLogging.
func setupLogging(dir string) (*Loggers, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("server: create log dir: %w", err)
		}
	}

	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(dir, name), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	}

	fInfo, err := open("server.log")
	if err != nil {
		return nil, err
	}
	fErr, err := open("error.log")
	if err != nil {
		return nil, err
	}
	fDebug, err := open("debug.log")
	if err != nil {
		return nil, err
	}
	fTick, err := open("tick.log")
	if err != nil {
		return nil, err
	}

	flags := log.Ldate | log.Ltime | log.Lshortfile
	return &Loggers{
		Info:  log.New(fInfo, "INFO: ", flags),
		Error: log.New(fErr, "ERROR: ", flags),
		Debug: log.New(fDebug, "DEBUG: ", flags),
		Tick:  log.New(fTick, "TICK: ", flags),
	}, nil
}

// debugEnabled reports whether level permits debug logging (spec.md §6
// Settings.LogLevel).
func debugEnabled(level string) bool {
	return level == "debug"
}
