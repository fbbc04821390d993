package logging

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	emit := func(l Logger) {
		l.Errorf("e")
		l.Warnf("w")
		l.Infof("i")
		l.Debugf("d")
	}

	tests := []struct {
		level Level
		want  []string
		drop  []string
	}{
		{LevelError, []string{"ERROR"}, []string{"WARN", "INFO", "DEBUG"}},
		{LevelWarn, []string{"ERROR", "WARN"}, []string{"INFO", "DEBUG"}},
		{LevelInfo, []string{"ERROR", "WARN", "INFO"}, []string{"DEBUG"}},
		{LevelDebug, []string{"ERROR", "WARN", "INFO", "DEBUG"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.level.String(), func(t *testing.T) {
			var buf bytes.Buffer
			emit(NewLogger(&buf, tt.level))
			out := buf.String()
			for _, tag := range tt.want {
				if !strings.Contains(out, tag+" ") {
					t.Errorf("level %v dropped %s output:\n%s", tt.level, tag, out)
				}
			}
			for _, tag := range tt.drop {
				if strings.Contains(out, tag+" ") {
					t.Errorf("level %v leaked %s output:\n%s", tt.level, tag, out)
				}
			}
		})
	}
}

func TestLineFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelInfo)
	logger.Infof("picked %d blob files", 3)

	// date time LEVEL message
	line := strings.TrimSuffix(buf.String(), "\n")
	want := regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2} INFO picked 3 blob files$`)
	if !want.MatchString(line) {
		t.Errorf("line %q does not match %q", line, want)
	}
}

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelError, "ERROR"},
		{LevelWarn, "WARN"},
		{LevelInfo, "INFO"},
		{LevelDebug, "DEBUG"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestIsNil(t *testing.T) {
	if !IsNil(nil) {
		t.Error("IsNil(nil) = false")
	}

	// A nil concrete pointer inside the interface must count as nil too.
	var typed *DefaultLogger
	if !IsNil(typed) {
		t.Error("IsNil(typed nil) = false")
	}

	if IsNil(NewLogger(&bytes.Buffer{}, LevelInfo)) {
		t.Error("IsNil(real logger) = true")
	}
	if IsNil(Discard) {
		t.Error("IsNil(Discard) = true")
	}
}

func TestOrDefault(t *testing.T) {
	if OrDefault(nil) == nil {
		t.Fatal("OrDefault(nil) = nil")
	}

	var typed *DefaultLogger
	if got := OrDefault(typed); IsNil(got) {
		t.Error("OrDefault(typed nil) returned an unusable logger")
	}

	own := NewLogger(&bytes.Buffer{}, LevelDebug)
	if got := OrDefault(own); got != Logger(own) {
		t.Error("OrDefault replaced a usable logger")
	}
}

func TestDiscardDropsEverything(t *testing.T) {
	// Must not panic; nothing observable to assert.
	Discard.Errorf("e %d", 1)
	Discard.Warnf("w %d", 2)
	Discard.Infof("i %d", 3)
	Discard.Debugf("d %d", 4)
}
