// Package logging provides levelled log output for volview. Messages go to
// the standard logger unless a log file is configured, in which case they are
// written to a size-rotated file.
package logging

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
)

// Level is the minimum severity a message needs to be written.
type Level uint

const (
	DebugLevel Level = iota
	InfoLevel
	WarningLevel
	ErrorLevel
	SilentLevel
)

// ParseLevel converts a level name from a config file.
func ParseLevel(name string) (Level, error) {
	switch name {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warning", "warn":
		return WarningLevel, nil
	case "error":
		return ErrorLevel, nil
	case "silent", "off":
		return SilentLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", name)
}

// Config selects the log destination.
type Config struct {
	// Logfile is the path of the rotating log file; empty means stderr
	Logfile string `yaml:"logfile" toml:"logfile"`

	// MaxSize is the size in megabytes at which the file is rotated
	MaxSize int `yaml:"maxSize" toml:"max_log_size"`

	// MaxAge is the number of days rotated files are kept
	MaxAge int `yaml:"maxAge" toml:"max_log_age"`

	// Level is one of debug, info, warning, error, silent
	Level string `yaml:"level" toml:"level"`
}

var (
	level  = InfoLevel
	rotate *lumberjack.Logger
)

// Setup applies c. It can be called again to redirect output.
func Setup(c Config) error {
	lvl, err := ParseLevel(c.Level)
	if err != nil {
		return err
	}
	level = lvl
	if c.Logfile == "" {
		return nil
	}
	if rotate != nil {
		rotate.Close()
	}
	rotate = &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize, // megabytes
		MaxAge:   c.MaxAge,  // days
	}
	log.SetOutput(rotate)
	return nil
}

// SetLevel changes the minimum severity that is written.
func SetLevel(l Level) {
	level = l
}

// Shutdown closes the log file if one is open and sends later output back
// to stderr.
func Shutdown() {
	if rotate != nil {
		log.Printf(" INFO closing log file")
		log.SetOutput(os.Stderr)
		rotate.Close()
		rotate = nil
	}
}

func Debugf(format string, args ...interface{}) {
	if level <= DebugLevel {
		log.Printf(" DEBUG "+format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if level <= InfoLevel {
		log.Printf(" INFO "+format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if level <= WarningLevel {
		log.Printf(" WARNING "+format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if level <= ErrorLevel {
		log.Printf(" ERROR "+format, args...)
	}
}

// Timer appends the elapsed time since its creation to each message.
//
//	t := logging.NewTimer()
//	...
//	t.Infof("resampled %s", name) // "resampled vol1: 1.2s"
type Timer struct {
	start time.Time
}

func NewTimer() Timer {
	return Timer{time.Now()}
}

func (t Timer) Debugf(format string, args ...interface{}) {
	Debugf(format+": %s", append(args, time.Since(t.start))...)
}

func (t Timer) Infof(format string, args ...interface{}) {
	Infof(format+": %s", append(args, time.Since(t.start))...)
}
