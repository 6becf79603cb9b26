package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"db-relay/internal/logger"

	"github.com/sirupsen/logrus"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.NewWithWriter(&buf, "debug", "json")
	if err != nil {
		t.Fatal(err)
	}
	if log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v", log.GetLevel())
	}

	log.WithField("integration", "users").Info("run finished")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not json: %q", buf.String())
	}
	if line["integration"] != "users" || line["msg"] != "run finished" {
		t.Errorf("unexpected line %v", line)
	}
}

func TestNewWithWriter_Invalid(t *testing.T) {
	if _, err := logger.NewWithWriter(&bytes.Buffer{}, "loud", "text"); err == nil {
		t.Error("expected invalid level error")
	}
	if _, err := logger.NewWithWriter(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Error("expected invalid format error")
	}
}
