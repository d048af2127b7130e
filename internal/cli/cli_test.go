package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{59 * time.Second, "0:59"},
		{61 * time.Second, "1:01"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatDurationShort(tt.d); got != tt.want {
			t.Errorf("FormatDurationShort(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536 * 1024, "1.5 MiB"},
		{20 * 1024 * 1024 * 1024, "20.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPromptForConsent(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"yes", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"sure\n", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		if got := PromptForConsent(strings.NewReader(tt.input), &out); got != tt.want {
			t.Errorf("PromptForConsent(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "Explicit Consent") {
			t.Errorf("consent text not printed")
		}
	}
}

func TestPromptForConsent_Layout(t *testing.T) {
	var out bytes.Buffer
	PromptForConsent(strings.NewReader("n\n"), &out)
	want := ConsentText + "\nI have read and agree to the guidelines [y/N]: "
	if out.String() != want {
		t.Errorf("prompt output = %q, want %q", out.String(), want)
	}
}

func TestResolveImagePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "face.png")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveImagePath(file)
	if err != nil {
		t.Fatalf("ResolveImagePath() error = %v", err)
	}
	if !filepath.IsAbs(got) {
		t.Errorf("expected absolute path, got %q", got)
	}

	if _, err := ResolveImagePath(dir); err == nil {
		t.Error("expected error for directory")
	}
	if _, err := ResolveImagePath(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("expected error for missing file")
	}
}
