package config

import "testing"

func TestGetString(t *testing.T) {
	tests := []struct {
		name        string
		flagValue   string
		configValue string
		want        string
	}{
		{"flag wins", "localhost:9090", "localhost:8080", "localhost:9090"},
		{"empty flag falls back to config", "", "localhost:8080", "localhost:8080"},
		{"both empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getString(tt.flagValue, tt.configValue); got != tt.want {
				t.Errorf("got: %q, want: %q", got, tt.want)
			}
		})
	}
}

func TestGetInt(t *testing.T) {
	tests := []struct {
		name        string
		flagValue   int
		configValue int
		want        int
	}{
		{"flag wins", 60, 30, 60},
		{"zero flag falls back to config", 0, 30, 30},
		{"both zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := getInt(tt.flagValue, tt.configValue); got != tt.want {
				t.Errorf("got: %d, want: %d", got, tt.want)
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	if got := getConfigPath("flag.json", "env.json"); got != "flag.json" {
		t.Errorf("expected flag value to win, got: %q", got)
	}
	if got := getConfigPath("", "env.json"); got != "env.json" {
		t.Errorf("expected env fallback, got: %q", got)
	}
}
