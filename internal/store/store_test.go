// internal/store/store_test.go
package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStore_MissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.yaml"))

	_, ok, err := s.LoadLimit()
	if err != nil {
		t.Fatalf("LoadLimit on missing file: %v", err)
	}
	if ok {
		t.Fatalf("missing file must report no calibration")
	}
}

func TestStore_RoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.yaml"))

	if err := s.SaveLimit(-48213); err != nil {
		t.Fatalf("SaveLimit: %v", err)
	}

	v, ok, err := s.LoadLimit()
	if err != nil {
		t.Fatalf("LoadLimit: %v", err)
	}
	if !ok {
		t.Fatalf("expected calibration present")
	}
	if v != -48213 {
		t.Fatalf("expected -48213, got %d", v)
	}
}

func TestStore_Overwrite(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.yaml"))

	if err := s.SaveLimit(100); err != nil {
		t.Fatalf("SaveLimit: %v", err)
	}
	if err := s.SaveLimit(-200); err != nil {
		t.Fatalf("SaveLimit: %v", err)
	}

	v, _, err := s.LoadLimit()
	if err != nil {
		t.Fatalf("LoadLimit: %v", err)
	}
	if v != -200 {
		t.Fatalf("expected -200, got %d", v)
	}
}

func TestStore_PreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	if err := os.WriteFile(path, []byte("wifi_ssid: workshop\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New(path)
	if err := s.SaveLimit(7); err != nil {
		t.Fatalf("SaveLimit: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "wifi_ssid: workshop") {
		t.Fatalf("foreign key lost:\n%s", data)
	}

	v, ok, err := s.LoadLimit()
	if err != nil || !ok || v != 7 {
		t.Fatalf("limit lost: v=%d ok=%v err=%v", v, ok, err)
	}
}
