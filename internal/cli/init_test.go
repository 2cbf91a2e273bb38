package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orcamento/internal/config"
)

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("ORCAMENTO_CLI_TEST=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ORCAMENTO_CLI_TEST", "")
	os.Unsetenv("ORCAMENTO_CLI_TEST")

	LoadEnvFile(path)
	if got := os.Getenv("ORCAMENTO_CLI_TEST"); got != "from-file" {
		t.Errorf("ORCAMENTO_CLI_TEST = %q, want from-file", got)
	}

	// Missing files are ignored.
	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadEnvFileKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("ORCAMENTO_CLI_TEST=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ORCAMENTO_CLI_TEST", "from-env")

	LoadEnvFile(path)
	if got := os.Getenv("ORCAMENTO_CLI_TEST"); got != "from-env" {
		t.Errorf("ORCAMENTO_CLI_TEST = %q, want from-env", got)
	}
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	tests := []struct {
		name      string
		cfg       config.Config
		wantDebug bool
		wantJSON  bool
		wantWarn  bool
	}{
		{"text info", config.Config{LogLevel: "info", LogFormat: "text"}, false, false, false},
		{"json debug", config.Config{LogLevel: "debug", LogFormat: "json"}, true, true, false},
		{"invalid level", config.Config{LogLevel: "loud", LogFormat: "text"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(&tt.cfg, "test", &buf)
			if logger.Component() != "test" {
				t.Errorf("Component() = %q", logger.Component())
			}

			slog.Debug("debug line")
			slog.Info("info line")
			out := buf.String()

			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v\n%s", got, tt.wantDebug, out)
			}
			if !strings.Contains(out, "info line") {
				t.Errorf("info line missing:\n%s", out)
			}
			if got := strings.HasPrefix(out, "{"); got != tt.wantJSON {
				t.Errorf("json output = %v, want %v\n%s", got, tt.wantJSON, out)
			}
			if got := strings.Contains(out, "Invalid log level"); got != tt.wantWarn {
				t.Errorf("level warning = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}
