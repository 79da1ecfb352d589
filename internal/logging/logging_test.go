package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: "INFO", want: zerolog.InfoLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "warn", want: zerolog.WarnLevel},
		{in: "error", want: zerolog.ErrorLevel},
		{in: "trace", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("%q: err=%v wantErr=%v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("%q: got %s want %s", tt.in, got, tt.want)
		}
	}
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, "info", "json")
	if err != nil {
		t.Fatal(err)
	}

	logger.Debug().Msg("hidden")
	logger.Info().Str("peer", "127.0.0.1:1").Msg("accepted")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "accepted" || entry["peer"] != "127.0.0.1:1" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewRejectsFormat(t *testing.T) {
	t.Parallel()

	if _, err := New(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatal("expected error")
	}
}
