package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	ctx, err := Setup(context.Background(), path, "json", zerolog.InfoLevel)
	if err != nil {
		t.Fatal(err)
	}
	zerolog.Ctx(ctx).Debug().Msg("hidden")
	zerolog.Ctx(ctx).Info().Str("key", "k1").Msg("decoded")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines: %q", len(lines), b)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["message"] != "decoded" || rec["key"] != "k1" || rec["level"] != "info" {
		t.Fatalf("record = %v", rec)
	}
	if _, ok := rec["caller"]; !ok {
		t.Fatalf("record has no caller: %v", rec)
	}
}

func TestSetupText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	ctx, err := Setup(context.Background(), path, "text", zerolog.DebugLevel)
	if err != nil {
		t.Fatal(err)
	}
	zerolog.Ctx(ctx).Warn().Int("entries", 3).Msg("short")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if s := string(b); !strings.HasPrefix(s, "WRN ") || !strings.Contains(s, "short") || !strings.Contains(s, "entries:3") {
		t.Fatalf("text output = %q", s)
	}
}

func TestSetupInvalidFormat(t *testing.T) {
	if _, err := Setup(context.Background(), "", "xml", zerolog.InfoLevel); err == nil {
		t.Fatal("expected an error for an unknown format")
	}
}
