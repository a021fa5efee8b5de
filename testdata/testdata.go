// Package testdata provides access to shared sample logs and config for testing
package testdata

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

var absoluteDirPath string

func init() {
	_, thisFile, _, _ := runtime.Caller(0)
	absoluteDirPath = filepath.Dir(thisFile)
}

// GetConfigPath returns the path of sample config, whose source path is relative to this directory
func GetConfigPath() string {
	return filepath.Join(absoluteDirPath, "config_sample.yml")
}

// GetSampleLogPath returns the path of sample syslog file
func GetSampleLogPath() string {
	return filepath.Join(absoluteDirPath, "sample.log")
}

// NewSyslogLine formats a RFC 5424 line with the given app and message, timestamped by index in seconds
func NewSyslogLine(index int, app string, message string) string {
	tm := time.Date(2022, 7, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(index) * time.Second)
	return fmt.Sprintf("<14>1 %s testhost %s %d main - %s", tm.Format(time.RFC3339Nano), app, 1000+index, message)
}

// WriteSyslogFile creates a syslog file of the lines in test temp dir and returns its path
func WriteSyslogFile(t *testing.T, lines []string) string {
	path := filepath.Join(t.TempDir(), "test.log")
	AppendSyslogFile(t, path, lines)
	return path
}

// AppendSyslogFile appends the lines to the syslog file
func AppendSyslogFile(t *testing.T, path string, lines []string) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer file.Close()
	if len(lines) == 0 {
		return
	}
	if _, err := file.WriteString(strings.Join(lines, "\n") + "\n"); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}
