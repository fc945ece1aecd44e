package cmd

import (
	"io"
	"testing"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Flags
		wantErr bool
	}{
		{"default", nil, Flags{Subcommand: "run", EnvPath: ".env"}, false},
		{"config before", []string{"-config", "/etc/fb.toml", "sync"}, Flags{Subcommand: "sync", ConfigPath: "/etc/fb.toml", EnvPath: ".env"}, false},
		{"dry run after", []string{"once", "-dry-run"}, Flags{Subcommand: "once", DryRun: true, EnvPath: ".env"}, false},
		{"service", []string{"-env", "prod.env", "service", "install"}, Flags{Subcommand: "service", ServiceAction: "install", EnvPath: "prod.env"}, false},
		{"version", []string{"-v"}, Flags{Subcommand: "run", Version: true, EnvPath: ".env"}, false},
		{"unknown", []string{"tweet"}, Flags{}, true},
		{"service missing action", []string{"service"}, Flags{}, true},
		{"service bad action", []string{"service", "reload"}, Flags{}, true},
		{"dry run on run", []string{"-dry-run"}, Flags{}, true},
		{"extra args", []string{"once", "now"}, Flags{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFlags(tt.args, io.Discard)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
