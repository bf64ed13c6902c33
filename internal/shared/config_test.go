package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.API.BaseURL != "https://content.hopfner.cc" {
			t.Errorf("expected base URL https://content.hopfner.cc, got %s", config.API.BaseURL)
		}

		if config.Database.Path != "./autohaus.db" {
			t.Errorf("expected database path ./autohaus.db, got %s", config.Database.Path)
		}

		if config.Stream.HeartbeatEvent != "heartbeat" {
			t.Errorf("expected heartbeat event 'heartbeat', got %s", config.Stream.HeartbeatEvent)
		}

		if config.Stream.GracePeriod() != 300*time.Millisecond {
			t.Errorf("expected grace period 300ms, got %v", config.Stream.GracePeriod())
		}

		if config.Auth.Store != "file" {
			t.Errorf("expected auth store 'file', got %s", config.Auth.Store)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("expected default config to validate, got %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[api]
base_url = "http://localhost:8000"
rate_limit = 2.5

[auth]
store = "database"

[stream]
grace_period_ms = 50
write_path = "/api/pretix/write/"

[listing]
source = "api"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.API.BaseURL != "http://localhost:8000" {
			t.Errorf("expected base URL http://localhost:8000, got %s", config.API.BaseURL)
		}
		if config.API.RateLimit != 2.5 {
			t.Errorf("expected rate limit 2.5, got %v", config.API.RateLimit)
		}
		if config.Stream.GracePeriod() != 50*time.Millisecond {
			t.Errorf("expected grace period 50ms, got %v", config.Stream.GracePeriod())
		}
		if config.Stream.HeartbeatEvent != "heartbeat" {
			t.Errorf("expected unset keys to keep defaults, got heartbeat %q", config.Stream.HeartbeatEvent)
		}
		if config.Server.Port != 3000 {
			t.Errorf("expected default server port 3000, got %d", config.Server.Port)
		}
	})

	t.Run("LoadConfig Rejects Unknown Store", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[auth]\nstore = \"keychain\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		_, err := LoadConfig(configPath)
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("LoadEnv", func(t *testing.T) {
		envPath := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(envPath, []byte("AUTOHAUS_API_URL=http://env.example\n"), 0644); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}
		t.Cleanup(func() { os.Unsetenv(EnvAPIURL) })

		config := DefaultConfig()
		if err := LoadEnv(config, envPath); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if config.API.BaseURL != "http://env.example" {
			t.Errorf("expected env override, got %s", config.API.BaseURL)
		}
	})

	t.Run("LoadEnv Missing File", func(t *testing.T) {
		config := DefaultConfig()
		if err := LoadEnv(config, filepath.Join(t.TempDir(), "missing.env")); err != nil {
			t.Errorf("expected missing dotenv file to be ignored, got %v", err)
		}
	})
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tc := []struct {
		name string
		in   string
		want string
	}{
		{name: "tilde prefix", in: "~/.autohaus/tokens.json", want: filepath.Join(home, ".autohaus/tokens.json")},
		{name: "absolute path", in: "/tmp/tokens.json", want: "/tmp/tokens.json"},
		{name: "relative path", in: "./tokens.json", want: "./tokens.json"},
		{name: "tilde in middle", in: "a/~/b", want: "a/~/b"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandHome(tt.in); got != tt.want {
				t.Errorf("ExpandHome() = %v, want %v", got, tt.want)
			}
		})
	}
}
