package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_TIMEOUT", "AUTOCOMPLETE_DWELL", "CORS_ORIGINS", "STRICT_ENROLLMENT", "API_BASE_URL"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	if c.Mode != ModeOffline || c.AutocompleteDwell != 30*time.Second || c.NotifyTTL != 3*time.Second {
		t.Fatalf("defaults = %+v", c)
	}
	if c.StrictEnrollment || len(c.CORSOrigins) != 2 {
		t.Fatalf("defaults = %+v", c)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("HTTP_TIMEOUT", "5")
	t.Setenv("AUTOCOMPLETE_DWELL", "45s")
	t.Setenv("STRICT_ENROLLMENT", "yes")
	t.Setenv("API_BASE_URL", "https://api.example.com/api/")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("LOG_MODE", "")
	c := FromEnv()
	if c.HTTPTimeout != 5*time.Second || c.AutocompleteDwell != 45*time.Second {
		t.Fatalf("durations = %v %v", c.HTTPTimeout, c.AutocompleteDwell)
	}
	if !c.StrictEnrollment || c.APIBaseURL != "https://api.example.com/api" || c.LogMode != "prod" {
		t.Fatalf("config = %+v", c)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("cors = %v", c.CORSOrigins)
	}
}

func TestEnvDurationRejectsGarbage(t *testing.T) {
	t.Setenv("X_DUR", "soon")
	if d := envDuration("X_DUR", time.Minute); d != time.Minute {
		t.Fatalf("d = %v", d)
	}
}

func TestValidateRequiresSecretOnline(t *testing.T) {
	if err := (Config{Mode: ModeOnline}).Validate(); err == nil {
		t.Fatal("online mode without a secret accepted")
	}
	if err := (Config{Mode: ModeOnline, AuthHMACSecret: "k"}).Validate(); err != nil {
		t.Fatal(err)
	}
	if err := (Config{Mode: ModeOffline}).Validate(); err != nil {
		t.Fatal(err)
	}
}
