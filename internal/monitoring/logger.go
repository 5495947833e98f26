package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Debugf logs per-frame diagnostics. It is a no-op unless enabled with
// SetDebug; locate runs over large stacks would otherwise flood the log.
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetDebug routes Debugf through the package logger when on, or back to
// a no-op when off.
func SetDebug(on bool) {
	if on {
		Debugf = func(format string, v ...interface{}) { Logf(format, v...) }
		return
	}
	Debugf = func(string, ...interface{}) {}
}
