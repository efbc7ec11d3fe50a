package logutil

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRedactKey(t *testing.T) {
	tests := map[string]string{
		"":                    "(none)",
		"short":               "********",
		"sk-1234567890abcdef": "sk-1...cdef",
	}
	for in, want := range tests {
		if got := RedactKey(in); got != want {
			t.Errorf("RedactKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSetupFile(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "idphoto.log")
	closer, err := Setup(true, path)
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.Printf("hello %s", "world")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "hello world") {
		t.Errorf("log line missing: %q", data)
	}
	if !strings.Contains(string(data), "logutil_test.go") {
		t.Errorf("verbose flag should add file names: %q", data)
	}
}

func TestSetupStderr(t *testing.T) {
	closer, err := Setup(false, "")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if log.Flags()&log.Lshortfile != 0 {
		t.Error("non-verbose setup should not log file names")
	}
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.log")
	w, err := newRotatingWriter(path, 100, 2)
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	defer w.Close()

	line := bytes.Repeat([]byte("x"), 60)
	for i := 0; i < 4; i++ {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	for _, name := range []string{path, path + ".1", path + ".2"} {
		st, err := os.Stat(name)
		if err != nil {
			t.Errorf("expected %s: %v", name, err)
			continue
		}
		if st.Size() != 60 {
			t.Errorf("%s size = %d, want 60", name, st.Size())
		}
	}
	if _, err := os.Stat(path + ".3"); err == nil {
		t.Error("only two archives should be kept")
	}
}
