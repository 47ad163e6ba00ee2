// Package mlog defines the logging interface used throughout NLDS, so call
// sites depend on a small contract rather than on zap directly.
package mlog

// Logger is the contract every NLDS component logs through.
type Logger interface {
	Info(args ...any)
	Infof(format string, args ...any)
	Infoln(args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Errorln(args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Warnln(args ...any)
	Debug(args ...any)
	Debugf(format string, args ...any)
	Debugln(args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Fatalln(args ...any)
	// WithFields returns a derived Logger carrying the given key/value pairs
	// on every subsequent entry.
	WithFields(fields ...any) Logger

	Sync() error
}

// Level enumerates the supported logging verbosities.
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// ParseLevel turns a config string into a Level, defaulting to InfoLevel on
// anything unrecognised.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// NoneLogger is a safe zero-value Logger returned when no logger has been
// attached to a context; every call is a no-op.
type NoneLogger struct{}

func (n *NoneLogger) Info(args ...any)                  {}
func (n *NoneLogger) Infof(format string, args ...any)  {}
func (n *NoneLogger) Infoln(args ...any)                {}
func (n *NoneLogger) Error(args ...any)                 {}
func (n *NoneLogger) Errorf(format string, args ...any) {}
func (n *NoneLogger) Errorln(args ...any)               {}
func (n *NoneLogger) Warn(args ...any)                  {}
func (n *NoneLogger) Warnf(format string, args ...any)  {}
func (n *NoneLogger) Warnln(args ...any)                {}
func (n *NoneLogger) Debug(args ...any)                 {}
func (n *NoneLogger) Debugf(format string, args ...any) {}
func (n *NoneLogger) Debugln(args ...any)               {}
func (n *NoneLogger) Fatal(args ...any)                 {}
func (n *NoneLogger) Fatalf(format string, args ...any) {}
func (n *NoneLogger) Fatalln(args ...any)               {}
func (n *NoneLogger) WithFields(fields ...any) Logger   { return n }
func (n *NoneLogger) Sync() error                       { return nil }
