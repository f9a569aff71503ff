package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("InvalidLevel", func(t *testing.T) {
		if _, err := New(Config{Level: "loud", Format: "json"}); err == nil {
			t.Fatal("expected error for unknown level")
		}
	})

	t.Run("FileOutput", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "blackout.log")
		log, err := New(Config{
			Level:  "info",
			Format: "console",
			File:   &FileConfig{Enabled: true, Path: path},
		})
		if err != nil {
			t.Fatalf("New: %v", err)
		}

		log.WithComponent("test").WithDocument("a.txt").Info("hello")
		_ = log.Sync()

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log: %v", err)
		}
		for _, want := range []string{`"component":"test"`, `"document":"a.txt"`, "hello"} {
			if !strings.Contains(string(data), want) {
				t.Errorf("log file missing %s: %s", want, data)
			}
		}
	})
}

func TestSetLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blackout.log")
	log, err := New(Config{Level: "warn", Format: "json", File: &FileConfig{Enabled: true, Path: path}})
	if err != nil {
		t.Fatal(err)
	}
	child := log.WithComponent("child")

	child.Info("dropped")
	if err := log.SetLevel("debug"); err != nil {
		t.Fatal(err)
	}
	child.Debug("kept")
	_ = log.Sync()

	if log.CurrentLevel() != "debug" {
		t.Errorf("Level = %q", log.CurrentLevel())
	}
	if err := log.SetLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "dropped") || !strings.Contains(string(data), "kept") {
		t.Errorf("log file = %s", data)
	}
}
