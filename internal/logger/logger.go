package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	catConnection = "connection"
	catAccount    = "account"
	catCharacter  = "character"
	catAdmin      = "admin"
)

var categories = []string{catConnection, catAccount, catCharacter, catAdmin}

var (
	mu         sync.Mutex
	dir        = "logs"
	currentDay string
	files      = map[string]*os.File{}
	loggers    = map[string]*logrus.Logger{}
	override   io.Writer
	level      = logrus.InfoLevel
	now        = time.Now
)

// Init sets the directory daily log files are written to.
func Init(logDir string) error {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	mu.Lock()
	defer mu.Unlock()
	dir = logDir
	detachLocked(os.Stderr)
	return nil
}

// SetOutput redirects every category to w instead of files. Passing nil restores files.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	override = w
	if w == nil {
		w = os.Stderr
	}
	detachLocked(w)
}

// SetLevel sets the minimum level of every category.
func SetLevel(l logrus.Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	for _, lg := range loggers {
		lg.SetLevel(l)
	}
}

// Close flushes and closes the open log files.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	detachLocked(os.Stderr)
}

// detachLocked points every logger at w before closing the files they wrote to.
// The next write reopens the daily files.
func detachLocked(w io.Writer) {
	for _, l := range loggers {
		l.SetOutput(w)
	}
	closeFiles(files)
	files = map[string]*os.File{}
	currentDay = ""
}

func closeFiles(fs map[string]*os.File) {
	for _, f := range fs {
		_ = f.Close()
	}
}

func rotateIfNeeded() {
	mu.Lock()
	defer mu.Unlock()
	day := now().UTC().Format("20060102")
	if day == currentDay && len(loggers) == len(categories) {
		return
	}
	currentDay = day
	old := files
	files = map[string]*os.File{}
	for _, name := range categories {
		l := loggers[name]
		if l == nil {
			l = logrus.New()
			l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
			l.SetLevel(level)
			loggers[name] = l
		}
		l.SetOutput(openLocked(day, name))
	}
	// writers hold the logger lock while writing, so nothing still uses the old files
	closeFiles(old)
}

func openLocked(day, name string) io.Writer {
	if override != nil {
		return override
	}
	_ = os.MkdirAll(dir, 0755)
	fn := filepath.Join(dir, fmt.Sprintf("log_%s_%s.log", day, name))
	f, err := os.OpenFile(fn, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file %s error: %v\n", fn, err)
		return os.Stderr
	}
	files[name] = f
	return f
}

func get(name string) *logrus.Entry {
	rotateIfNeeded()
	mu.Lock()
	defer mu.Unlock()
	return loggers[name].WithField("category", name)
}

func Connection() *logrus.Entry { return get(catConnection) }
func Account() *logrus.Entry    { return get(catAccount) }
func Character() *logrus.Entry  { return get(catCharacter) }
func Admin() *logrus.Entry      { return get(catAdmin) }
