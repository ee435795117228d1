// Package honeylog is honeycomb's leveled logging façade. It mirrors the
// level set and call shape of the teacher's sylog package (Fatalf, Errorf,
// Warningf, Infof, Verbosef, Debugf, SetLevel/GetLevel, an environment
// variable carrying the level across a fork) but is backed by a shared
// *logrus.Logger instead of a bare fmt.Fprintf writer, the way
// canonical-lxd's logger package wraps logrus behind a small façade.
package honeylog

import (
	"os"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level mirrors the teacher's messageLevel scale: more negative is more
// severe, more positive is more verbose.
type Level int

const (
	FatalLevel   Level = -4
	ErrorLevel   Level = -3
	WarnLevel    Level = -2
	LogLevel     Level = -1
	InfoLevel    Level = 1
	VerboseLevel Level = 2
	DebugLevel   Level = 3
)

// EnvVar is read once at package init; EnvAssignment formats the current
// level under this name for a child process's environment, the same trick
// sylog.GetEnvVar/init perform for APPTAINER_MESSAGELEVEL. The Launcher's
// stage1 re-exec does not pass it on.
const EnvVar = "HONEYCOMB_LOGLEVEL"

var (
	mu     sync.Mutex
	level  = InfoLevel
	logger = newLogrus()
)

func newLogrus() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

func init() {
	if v, err := strconv.Atoi(os.Getenv(EnvVar)); err == nil {
		level = Level(v)
	}
	syncLogrusLevel()
}

func syncLogrusLevel() {
	switch {
	case level <= FatalLevel:
		logger.SetLevel(logrus.FatalLevel)
	case level <= ErrorLevel:
		logger.SetLevel(logrus.ErrorLevel)
	case level <= WarnLevel:
		logger.SetLevel(logrus.WarnLevel)
	case level < VerboseLevel:
		logger.SetLevel(logrus.InfoLevel)
	case level < DebugLevel:
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.TraceLevel)
	}
}

// SetLevel sets the current log level.
func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	syncLogrusLevel()
}

// GetLevel returns the current log level.
func GetLevel() Level {
	mu.Lock()
	defer mu.Unlock()
	return level
}

// EnvAssignment returns a HONEYCOMB_LOGLEVEL=<n> string suitable for
// inclusion in a child process's environment, so the level survives a
// fork the way sylog.GetEnvVar does for APPTAINER_MESSAGELEVEL.
func EnvAssignment() string {
	return EnvVar + "=" + strconv.Itoa(int(GetLevel()))
}

// SetOutput redirects subsequent log output; tests use this to capture
// output instead of writing to stderr.
func SetOutput(w interface{ Write([]byte) (int, error) }) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

func Fatalf(format string, a ...interface{})   { logger.Fatalf(format, a...) }
func Errorf(format string, a ...interface{})   { logger.Errorf(format, a...) }
func Warningf(format string, a ...interface{}) { logger.Warnf(format, a...) }
func Infof(format string, a ...interface{})    { logger.Infof(format, a...) }
func Verbosef(format string, a ...interface{}) { logger.Debugf(format, a...) }
func Debugf(format string, a ...interface{})   { logger.Tracef(format, a...) }
