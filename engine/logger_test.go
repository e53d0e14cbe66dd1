package engine

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))
	Logger().Debug("verified")
	if logs.Len() != 1 {
		t.Errorf("observed %d entries, want 1", logs.Len())
	}

	SetLogger(nil)
	if Logger() == nil {
		t.Fatal("Logger() returned nil after SetLogger(nil)")
	}
	Logger().Debug("dropped")
	if logs.Len() != 1 {
		t.Errorf("no-op logger wrote to the old core: %d entries", logs.Len())
	}
}
