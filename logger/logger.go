package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"
)

const (
	MaxLogDirSize = 10 * 1024 * 1024 // 10MB
	LogFileName   = "piezo-writer.log"

	// ArchivePattern matches rotated logs; nothing else in the directory is touched
	ArchivePattern = "piezo-writer.*.log"
)

// Level is the severity of a log line
type Level int32

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the tag printed in front of every line
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "TRACE"
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name, falling back to INFO
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

var (
	logFile     *os.File
	logDir      string
	mu          sync.Mutex
	initialized bool
	stopCheck   chan struct{}

	minLevel = atomic.NewInt32(int32(LevelInfo))
)

// Init initializes the logger with a log directory
func Init(dir string) error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}

	logDir = dir

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFileName)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = file

	// Mirror to stderr so the control loop can be watched from a terminal
	log.SetOutput(io.MultiWriter(os.Stderr, file))
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	initialized = true

	stopCheck = make(chan struct{})

	go checkAndRotate()
	go periodicSizeCheck(stopCheck)

	Info("Logger initialized: %s", logPath)
	return nil
}

// Close closes the log file
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		log.SetOutput(os.Stderr)
		logFile.Close()
		logFile = nil
	}
	if stopCheck != nil {
		close(stopCheck)
		stopCheck = nil
	}
	logDir = ""
	initialized = false
}

// SetOutput redirects log lines to w without touching the log file
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// SetLevel drops every line below l
func SetLevel(l Level) {
	minLevel.Store(int32(l))
}

// GetLevel returns the current minimum level
func GetLevel() Level {
	return Level(minLevel.Load())
}

// Enabled reports whether lines at l are written
func Enabled(l Level) bool {
	return l >= GetLevel()
}

func output(l Level, format string, args ...interface{}) {
	if !Enabled(l) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	log.Printf("[%s] %s", l, msg)
}

// Trace logs a trace message
func Trace(format string, args ...interface{}) {
	output(LevelTrace, format, args...)
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	output(LevelDebug, format, args...)
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	output(LevelInfo, format, args...)
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	output(LevelWarn, format, args...)
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	output(LevelError, format, args...)
}

// Command logs a command line sent to or received from a controller.
// Line terminators are escaped so each command stays on one log line.
func Command(direction, endpoint string, data []byte) {
	if !Enabled(LevelTrace) {
		return
	}
	log.Printf("[CMD] %s %s %q", direction, endpoint, data)
}

// checkAndRotate checks directory size and rotates if necessary
func checkAndRotate() {
	mu.Lock()
	defer mu.Unlock()

	if logDir == "" {
		return
	}

	size, err := getDirSize(logDir)
	if err != nil {
		log.Printf("[LOGGER] Error checking directory size: %v", err)
		return
	}

	if size > MaxLogDirSize {
		rotateOldLogs()
	}
}

// getDirSize calculates total size of files in directory
func getDirSize(dir string) (int64, error) {
	var size int64
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		size += info.Size()
	}
	return size, nil
}

// rotateOldLogs removes archived logs, then truncates the current one if
// the directory is still over the limit
func rotateOldLogs() {
	currentLogPath := filepath.Join(logDir, LogFileName)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		log.Printf("[LOGGER] Error reading log directory: %v", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !isArchive(entry.Name()) {
			continue
		}
		filePath := filepath.Join(logDir, entry.Name())
		if err := os.Remove(filePath); err != nil {
			log.Printf("[LOGGER] Error removing old log %s: %v", entry.Name(), err)
		} else {
			log.Printf("[LOGGER] Removed old log: %s", entry.Name())
		}
	}

	size, _ := getDirSize(logDir)
	if size <= MaxLogDirSize {
		return
	}

	archiveName := fmt.Sprintf("piezo-writer.%s.log", time.Now().Format("20060102-150405"))
	archivePath := filepath.Join(logDir, archiveName)

	if logFile != nil {
		logFile.Close()
	}

	os.Rename(currentLogPath, archivePath)

	file, err := os.OpenFile(currentLogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.SetOutput(os.Stderr)
		log.Printf("[LOGGER] Error creating new log file: %v", err)
		return
	}
	logFile = file
	log.SetOutput(io.MultiWriter(os.Stderr, file))

	// The archive alone is over the limit, so it is not worth keeping
	os.Remove(archivePath)

	log.Printf("[LOGGER] Log rotated and cleaned")
}

func isArchive(name string) bool {
	ok, _ := filepath.Match(ArchivePattern, name)
	return ok
}

// periodicSizeCheck checks log directory size every hour until stop is closed
func periodicSizeCheck(stop <-chan struct{}) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			checkAndRotate()
		}
	}
}
