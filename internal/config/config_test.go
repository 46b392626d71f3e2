package config

import (
	"os"
	"testing"
)

func TestLoad(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"MQTT_BROKER_URL": "tcp://localhost:1883",
	})
	defer cleanup()

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":5000" {
			t.Errorf("HTTPAddr = %q, want :5000", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
		}
		if cfg.MQTTTopics != "#" {
			t.Errorf("MQTTTopics = %q, want #", cfg.MQTTTopics)
		}
		if cfg.MQTTClientID != "mtc-agent" {
			t.Errorf("MQTTClientID = %q, want mtc-agent", cfg.MQTTClientID)
		}
		if cfg.BufferSizeExp != 17 {
			t.Errorf("BufferSizeExp = %d, want 17", cfg.BufferSizeExp)
		}
		if cfg.CheckpointFreq != 1000 {
			t.Errorf("CheckpointFreq = %d, want 1000", cfg.CheckpointFreq)
		}
		if !cfg.AutoAvailable {
			t.Error("AutoAvailable = false, want true")
		}
	})

	t.Run("cli_overrides_take_priority", func(t *testing.T) {
		cfg, err := Load(Overrides{
			EnvFile:         "nonexistent.env",
			HTTPAddr:        ":9090",
			LogLevel:        "debug",
			MQTTBrokerURL:   "tcp://override:1883",
			DeviceModelPath: "/tmp/devices.json",
			SHDRSources:     "line1=localhost:7878",
		})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.HTTPAddr != ":9090" {
			t.Errorf("HTTPAddr = %q, want :9090", cfg.HTTPAddr)
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
		}
		if cfg.MQTTBrokerURL != "tcp://override:1883" {
			t.Errorf("MQTTBrokerURL = %q, want override", cfg.MQTTBrokerURL)
		}
		if cfg.DeviceModelPath != "/tmp/devices.json" {
			t.Errorf("DeviceModelPath = %q, want override", cfg.DeviceModelPath)
		}
		if cfg.SHDRSources != "line1=localhost:7878" {
			t.Errorf("SHDRSources = %q, want override", cfg.SHDRSources)
		}
	})

	t.Run("env_vars_read", func(t *testing.T) {
		cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.MQTTBrokerURL != "tcp://localhost:1883" {
			t.Errorf("MQTTBrokerURL = %q, want tcp://localhost:1883", cfg.MQTTBrokerURL)
		}
	})
}

func TestValidateRequiresSource(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{"MQTT_BROKER_URL": ""})
	defer cleanup()
	os.Unsetenv("MQTT_BROKER_URL")

	cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when no ingest source is configured")
	}
}

func TestValidateArchiveRequiresURL(t *testing.T) {
	cleanup := setEnvs(t, map[string]string{
		"MQTT_BROKER_URL": "tcp://localhost:1883",
		"ARCHIVE_STORE":   "true",
	})
	defer cleanup()

	cfg, err := Load(Overrides{EnvFile: "nonexistent.env"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when archive store is enabled without a database URL")
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{CORSOrigins: " http://a.example , http://b.example "}
	got := cfg.AllowedOrigins()
	if len(got) != 2 || got[0] != "http://a.example" || got[1] != "http://b.example" {
		t.Errorf("AllowedOrigins = %v", got)
	}
	if (&Config{}).AllowedOrigins() != nil {
		t.Error("expected nil for empty CORSOrigins")
	}
}

// setEnvs sets environment variables and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) func() {
	t.Helper()
	originals := make(map[string]string)
	unset := make([]string, 0)

	for k, v := range envs {
		if orig, ok := os.LookupEnv(k); ok {
			originals[k] = orig
		} else {
			unset = append(unset, k)
		}
		os.Setenv(k, v)
	}

	return func() {
		for k, v := range originals {
			os.Setenv(k, v)
		}
		for _, k := range unset {
			os.Unsetenv(k)
		}
	}
}
