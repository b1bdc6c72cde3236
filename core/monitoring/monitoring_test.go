package monitoring

import (
	"errors"
	"testing"
)

func TestGlobalMonitor(t *testing.T) {
	rec := &RecordingMonitor{}
	Init(rec)
	defer Init(NopMonitor{})
	Init(nil)

	CaptureException(errors.New("tick failed"), map[string]string{"stage": "snapshot"})
	CaptureException(nil, nil)

	ev := rec.Events()
	if len(ev) != 1 {
		t.Fatalf("expected 1 event, got %d", len(ev))
	}
	if ev[0].Tags["stage"] != "snapshot" {
		t.Fatalf("unexpected tags %v", ev[0].Tags)
	}
}
