package spawn

import "testing"

func TestEnvSlotFixedNumbering(t *testing.T) {
	cases := []struct {
		name           string
		extraFileIndex int
		want           string
	}{
		{"RUNH_FIFOFD", 1, "RUNH_FIFOFD=3"},
		{"RUNH_INITPIPE", 2, "RUNH_INITPIPE=4"},
		{"RUNH_SPEC_FILE", 3, "RUNH_SPEC_FILE=5"},
		{"RUNH_LOG_PIPE", 4, "RUNH_LOG_PIPE=6"},
		{"RUNH_CONSOLE", 5, "RUNH_CONSOLE=7"},
	}

	for _, c := range cases {
		got := envSlot(c.name, c.extraFileIndex)
		if got != c.want {
			t.Errorf("envSlot(%q, %d) = %q, want %q", c.name, c.extraFileIndex, got, c.want)
		}
	}
}
