package logger

import "testing"

func TestNewZapLogger_Levels(t *testing.T) {
	for _, lvl := range []Level{Debug, Info, Warn, Error} {
		l, sync, err := NewZapLogger(lvl)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", lvl, err)
		}
		l.Debugf("debug %d", 1)
		l.Infof("info %s", "x")
		sync()
	}
}

func TestNewZapLogger_UnknownLevel(t *testing.T) {
	if _, _, err := NewZapLogger("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
