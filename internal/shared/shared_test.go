package shared

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateSyncID(t *testing.T) {
	t.Run("produces valid UUIDs", func(t *testing.T) {
		id := GenerateSyncID()
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("expected valid UUID, got %q: %v", id, err)
		}
	})

	t.Run("produces distinct values", func(t *testing.T) {
		if GenerateSyncID() == GenerateSyncID() {
			t.Error("expected distinct sync ids")
		}
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)

		logger.Info("hello")
		if buf.Len() == 0 {
			t.Error("expected log output")
		}
	})

	t.Run("nil writer defaults to stderr", func(t *testing.T) {
		if NewLogger(nil) == nil {
			t.Error("expected a logger")
		}
	})

	t.Run("child logger carries key-values", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "store", "alice.db")

		logger.Warn("skipping")
		if !bytes.Contains(buf.Bytes(), []byte("alice.db")) {
			t.Errorf("expected key-value in output, got %s", buf.String())
		}
	})
}
