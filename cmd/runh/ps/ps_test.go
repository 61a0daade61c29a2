package ps

import "testing"

func TestGetPidIndexFindsColumn(t *testing.T) {
	idx, err := getPidIndex("UID        PID  PPID  C STIME TTY          TIME CMD")
	if err != nil {
		t.Fatalf("getPidIndex: %v", err)
	}
	if idx != 1 {
		t.Errorf("index = %d, want 1", idx)
	}
}

func TestGetPidIndexMissingColumn(t *testing.T) {
	if _, err := getPidIndex("UID COMMAND"); err == nil {
		t.Fatal("expected an error when PID column is absent")
	}
}
