package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerFormat(t *testing.T) {
	tests := []struct {
		name    string
		log     func(l *slog.Logger)
		wantOut string
		wantErr string
	}{
		{
			name:    "info with component",
			log:     func(l *slog.Logger) { l.With("component", "handler").Info("done", "outcome", "read") },
			wantOut: "[LOG] handler: done outcome=read",
		},
		{
			name:    "no component",
			log:     func(l *slog.Logger) { l.Warn("slow") },
			wantOut: "[LOG] slow",
		},
		{
			name:    "quoted value",
			log:     func(l *slog.Logger) { l.Info("accepted", "line", "write a.txt hi") },
			wantOut: `accepted line="write a.txt hi"`,
		},
		{
			name:    "error goes to error writer",
			log:     func(l *slog.Logger) { l.Error("failed", "kind", "ResourceUnavailable") },
			wantErr: "[ERR] failed kind=ResourceUnavailable",
		},
		{
			name:    "groups qualify keys",
			log:     func(l *slog.Logger) { l.WithGroup("lock").Info("evicted", "resource", "a.txt") },
			wantOut: "evicted lock.resource=a.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			tt.log(slog.New(NewConsoleHandler(&out, &errOut, slog.LevelDebug)))

			if tt.wantOut != "" && !strings.Contains(out.String(), tt.wantOut) {
				t.Errorf("out = %q, want it to contain %q", out.String(), tt.wantOut)
			}
			if tt.wantErr != "" && !strings.Contains(errOut.String(), tt.wantErr) {
				t.Errorf("err = %q, want it to contain %q", errOut.String(), tt.wantErr)
			}
			if tt.wantOut == "" && out.Len() != 0 {
				t.Errorf("unexpected out = %q", out.String())
			}
		})
	}
}

func TestConsoleHandlerLevel(t *testing.T) {
	var out bytes.Buffer
	l := slog.New(NewConsoleHandler(&out, nil, slog.LevelWarn))

	l.Info("hidden")
	l.Warn("shown")
	l.Error("also shown")

	got := out.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("INFO record passed a WARN handler: %q", got)
	}
	if strings.Count(got, "\n") != 2 {
		t.Errorf("got %d lines, want 2: %q", strings.Count(got, "\n"), got)
	}
}

func TestConsoleHandlerPlainForNonTerminal(t *testing.T) {
	var out bytes.Buffer
	slog.New(NewConsoleHandler(&out, nil, slog.LevelInfo)).Info("plain")

	if strings.Contains(out.String(), "\x1b[") {
		t.Errorf("escape codes written to a non-terminal: %q", out.String())
	}
}
