package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, "storage:\n  path: "+filepath.Join(dir, "permashift.bolt")+"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.EventsPort != 6420 {
		t.Errorf("events_port = %d, want 6420", cfg.Server.EventsPort)
	}
	if cfg.VDR.SVDRPPort != 6419 {
		t.Errorf("svdrp_port = %d, want 6419", cfg.VDR.SVDRPPort)
	}
	if !cfg.Timeshift.Enabled || cfg.Timeshift.MaxLengthHours != 3 {
		t.Errorf("timeshift = %+v", cfg.Timeshift)
	}
	if cfg.Timeshift.PausePriority != 10 || cfg.Timeshift.PauseLifetime != 1 {
		t.Errorf("pause threshold = %d/%d, want 10/1",
			cfg.Timeshift.PausePriority, cfg.Timeshift.PauseLifetime)
	}
	if cfg.Storage.Type != "bolt" {
		t.Errorf("storage type = %q, want bolt", cfg.Storage.Type)
	}
	if cfg.Journal.RetentionDays != 90 || cfg.Journal.CleanupTime != "04:00" {
		t.Errorf("journal = %+v", cfg.Journal)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
vdr:
  host: vdr.lan
  svdrp_port: 16419
timeshift:
  max_length_hours: 5
  prompt_timeout: 2m
storage:
  path: `+filepath.Join(dir, "db.bolt")+`
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.VDR.Host != "vdr.lan" || cfg.VDR.SVDRPPort != 16419 {
		t.Errorf("vdr = %+v", cfg.VDR)
	}
	if cfg.Timeshift.MaxLengthHours != 5 || cfg.Timeshift.PromptTimeout != "2m" {
		t.Errorf("timeshift = %+v", cfg.Timeshift)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
}

func TestLoadValidationFailures(t *testing.T) {
	// storage type none keeps validation away from the filesystem
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "max length too long",
			content: "storage:\n  type: none\ntimeshift:\n  max_length_hours: 24\n",
			wantErr: "max_length_hours",
		},
		{
			name:    "max length zero",
			content: "storage:\n  type: none\ntimeshift:\n  max_length_hours: 0\n",
			wantErr: "max_length_hours",
		},
		{
			name:    "bad prompt timeout",
			content: "storage:\n  type: none\ntimeshift:\n  prompt_timeout: soon\n",
			wantErr: "prompt_timeout",
		},
		{
			name:    "unknown storage type",
			content: "storage:\n  type: etcd\n",
			wantErr: "unknown storage type",
		},
		{
			name:    "bad cleanup time",
			content: "storage:\n  type: none\njournal:\n  cleanup_time: late\n",
			wantErr: "cleanup_time",
		},
		{
			name:    "bad events port",
			content: "storage:\n  type: none\nserver:\n  events_port: 123456\n",
			wantErr: "events port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadStorageNone(t *testing.T) {
	path := writeConfig(t, "storage:\n  type: none\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Type != "none" {
		t.Errorf("storage type = %q", cfg.Storage.Type)
	}
}

func TestParseDuration(t *testing.T) {
	if got := ParseDuration("2m", time.Second); got != 2*time.Minute {
		t.Errorf("ParseDuration(2m) = %v", got)
	}
	if got := ParseDuration("", time.Second); got != time.Second {
		t.Errorf("ParseDuration(empty) = %v, want fallback", got)
	}
	if got := ParseDuration("soon", time.Second); got != time.Second {
		t.Errorf("ParseDuration(garbage) = %v, want fallback", got)
	}
}
