package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	maxLogSize    = 5 * 1024 * 1024 // 5MB
	maxLogBackups = 5
)

var (
	Logger = log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)
)

// rotatingFile is swapped out under mu when the log file is rotated.
type rotatingFile struct {
	mu   sync.Mutex
	path string
	file *os.File
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Write(p)
}

// InitLogger points Logger at stdout and, when logDir is set, also at a rotated log file.
func InitLogger(logDir string) error {
	if logDir == "" {
		Logger.SetOutput(os.Stdout)
		return nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile := filepath.Join(logDir, "fbtweeter.log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	rf := &rotatingFile{path: logFile, file: file}
	Logger.SetOutput(io.MultiWriter(os.Stdout, rf))

	go rotateLogFile(rf)

	return nil
}

func rotateLogFile(rf *rotatingFile) {
	for {
		time.Sleep(1 * time.Hour)

		if err := rotate(rf, maxLogSize); err != nil {
			Logger.Printf("Error rotating log file: %v", err)
		}
	}
}

func rotate(rf *rotatingFile, limit int64) error {
	info, err := os.Stat(rf.path)
	if err != nil {
		return err
	}
	if info.Size() < limit {
		return nil
	}

	rf.mu.Lock()
	defer rf.mu.Unlock()

	for i := maxLogBackups - 1; i > 0; i-- {
		oldFile := fmt.Sprintf("%s.%d", rf.path, i)
		newFile := fmt.Sprintf("%s.%d", rf.path, i+1)
		os.Rename(oldFile, newFile)
	}

	rf.file.Close()
	if err := os.Rename(rf.path, rf.path+".1"); err != nil {
		return err
	}

	newFile, err := os.OpenFile(rf.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error creating new log file: %w", err)
	}
	rf.file = newFile
	return nil
}
