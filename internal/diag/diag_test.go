package diag

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoggerGating(t *testing.T) {
	tests := []struct {
		name      string
		level     Level
		wantInfo  bool
		wantDebug bool
	}{
		{"quiet", Quiet, false, false},
		{"normal", Normal, true, false},
		{"debug", Debug, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := &Logger{level: tt.level, out: &buf, tag: "test"}

			l.Infof("info line")
			gotInfo := strings.Contains(buf.String(), "info line")
			if gotInfo != tt.wantInfo {
				t.Errorf("Infof emitted = %v, want %v", gotInfo, tt.wantInfo)
			}

			buf.Reset()
			l.Debugf("debug line")
			gotDebug := strings.Contains(buf.String(), "debug line")
			if gotDebug != tt.wantDebug {
				t.Errorf("Debugf emitted = %v, want %v", gotDebug, tt.wantDebug)
			}
		})
	}
}

func TestWithComponentTag(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{level: Debug, out: &buf, tag: "syscage"}
	sub := l.WithComponent("tracer")

	sub.Infof("hello")
	if !strings.Contains(buf.String(), "[syscage:tracer] hello") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
