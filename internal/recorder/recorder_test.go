package recorder

import (
	"path/filepath"
	"testing"
	"time"
)

var recEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRecorder_RoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	rec, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rec.Close()

	if rec.RunID() == "" {
		t.Fatalf("RunID is empty")
	}

	for i := 0; i < 3; i++ {
		at := recEpoch.Add(time.Duration(i) * time.Second)
		if err := rec.RecordPowerSample("SensorNode", at, 1.2e-3, float64(i)*6e-3, 7200); err != nil {
			t.Fatalf("RecordPowerSample: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		at := recEpoch.Add(time.Duration(i) * time.Second)
		if err := rec.RecordMessage("INPORT", at, 5242880); err != nil {
			t.Fatalf("RecordMessage: %v", err)
		}
	}

	n, err := rec.PowerSampleCount("SensorNode")
	if err != nil {
		t.Fatalf("PowerSampleCount: %v", err)
	}
	if n != 3 {
		t.Fatalf("PowerSampleCount = %d, want 3", n)
	}

	n, err = rec.MessageCount("INPORT")
	if err != nil {
		t.Fatalf("MessageCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("MessageCount = %d, want 2", n)
	}

	// Unknown keys count zero rather than erroring.
	if n, err := rec.MessageCount("OTHER"); err != nil || n != 0 {
		t.Fatalf("MessageCount(OTHER) = %d, %v; want 0, nil", n, err)
	}
}

func TestRecorder_RunsAreIsolated(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	first, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open first: %v", err)
	}
	if err := first.RecordMessage("INPORT", recEpoch, 100); err != nil {
		t.Fatalf("RecordMessage: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer second.Close()

	if second.RunID() == first.RunID() {
		t.Fatalf("two runs share a run ID")
	}
	n, err := second.MessageCount("INPORT")
	if err != nil {
		t.Fatalf("MessageCount: %v", err)
	}
	if n != 0 {
		t.Fatalf("second run sees %d messages from the first run", n)
	}
}

func TestRecorder_CreatesParentDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "deeper", "runs.db")
	rec, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open with missing parents: %v", err)
	}
	rec.Close()
}
