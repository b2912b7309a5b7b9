package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eva/internal/config"
	"eva/internal/logging"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	logger.Info("hello", logging.String(logging.FieldMeetingID, "m-1"))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "eva.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"meeting_id":"m-1"`) {
		t.Fatalf("log file missing meeting attr: %s", data)
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	logger := logging.NewNop()
	logger.Error("should be discarded")
	component := logging.NewComponentLogger(nil, "hub")
	component.Info("also discarded")
}
