// Package logflags maps command line logging flags to the component
// loggers used throughout the debugger.
package logflags

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var debugger = false
var terminal = false

var logOut io.WriteCloser

func makeLogger(flag bool, fields logrus.Fields) Logger {
	lf := logrus.New()
	lf.Formatter = textFormatter
	if logOut != nil {
		lf.Out = logOut
	} else {
		lf.Out = os.Stderr
	}
	lf.Level = logrus.DebugLevel
	if !flag {
		lf.Level = logrus.PanicLevel
	}
	return &logrusLogger{lf.WithFields(fields)}
}

// Any returns true if any logging is enabled.
func Any() bool {
	return debugger || terminal
}

// Debugger returns true if the process control layer should log.
func Debugger() bool {
	return debugger
}

// DebuggerLogger returns a logger for the process control layer.
func DebuggerLogger() Logger {
	return makeLogger(debugger, logrus.Fields{"layer": "debugger"})
}

// Terminal returns true if the terminal front-end should log.
func Terminal() bool {
	return terminal
}

// TerminalLogger returns a logger for the terminal front-end.
func TerminalLogger() Logger {
	return makeLogger(terminal, logrus.Fields{"layer": "terminal"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets component logging flags based on the contents of logstr.
// logDest, when non-empty, names a file or file descriptor logs are
// written to instead of standard error.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "debugger-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	if !logFlag {
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "debugger"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch logcmd {
		case "debugger":
			debugger = true
		case "terminal":
			terminal = true
		default:
			return fmt.Errorf("unknown log output %q", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}

var textFormatter = &logrus.TextFormatter{
	FullTimestamp:   true,
	TimestampFormat: "2006-01-02T15:04:05Z07:00",
}
