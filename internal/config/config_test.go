package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	addr, err := cfg.Server.Addr()
	if err != nil {
		t.Fatalf("Addr() failed: %v", err)
	}
	if addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", addr)
	}
	if cfg.Ask.URL != "http://127.0.0.1:5000" {
		t.Errorf("unexpected default ASK_URL %q", cfg.Ask.URL)
	}
	if cfg.Ask.Timeout != 30*time.Second {
		t.Errorf("unexpected default ASK_TIMEOUT %s", cfg.Ask.Timeout)
	}
	if cfg.Ask.RetryAttempts != 1 {
		t.Errorf("expected a single attempt by default, got %d", cfg.Ask.RetryAttempts)
	}
	if cfg.Voice.Locale != "en-US" {
		t.Errorf("unexpected default locale %q", cfg.Voice.Locale)
	}
	if cfg.Voice.SpeakDefault {
		t.Error("speech output must be off by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("unexpected default log level %q", cfg.Log.Level)
	}
	if !cfg.MetricsEnabled {
		t.Error("metrics should be enabled by default")
	}
	if cfg.Speech.Enabled() {
		t.Error("speech must be disabled without credentials")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("ASK_URL", "http://helpdesk.local:5000/")
	t.Setenv("ASK_TIMEOUT", "5s")
	t.Setenv("ASK_RETRY_ATTEMPTS", "3")
	t.Setenv("VOICE_LOCALE", "en-GB")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PUBLIC_URL", "https://helpdesk.example.com/")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	addr, _ := cfg.Server.Addr()
	if addr != "127.0.0.1:9000" {
		t.Errorf("expected addr passthrough, got %s", addr)
	}
	if cfg.Ask.URL != "http://helpdesk.local:5000" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.Ask.URL)
	}
	if cfg.Ask.Timeout != 5*time.Second {
		t.Errorf("unexpected ASK_TIMEOUT %s", cfg.Ask.Timeout)
	}
	if cfg.Ask.RetryAttempts != 3 {
		t.Errorf("unexpected ASK_RETRY_ATTEMPTS %d", cfg.Ask.RetryAttempts)
	}
	if cfg.Voice.Locale != "en-GB" {
		t.Errorf("unexpected locale %q", cfg.Voice.Locale)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("unexpected log level %q", cfg.Log.Level)
	}
	if cfg.Server.PublicURL != "https://helpdesk.example.com" {
		t.Errorf("unexpected public url %q", cfg.Server.PublicURL)
	}
}

func TestLoadRejectsInvalidPublicURL(t *testing.T) {
	t.Setenv("PUBLIC_URL", "helpdesk.example.com")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for PUBLIC_URL without scheme")
	}
}

func TestLoadRejectsInvalidAskURL(t *testing.T) {
	t.Setenv("ASK_URL", "helpdesk.local")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for ASK_URL without scheme")
	}
}

func TestLoadRejectsInvalidPort(t *testing.T) {
	t.Setenv("PORT", "80 80")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for PORT containing spaces")
	}
}

func TestSpeechEnabledWithAPIKeyFallback(t *testing.T) {
	t.Setenv("SPEECH_APP_ID", "app")
	t.Setenv("SPEECH_API_KEY", "key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !cfg.Speech.Enabled() {
		t.Fatal("expected speech enabled with app id and api key")
	}

	model := cfg.Speech.Model()
	if model.AccessToken != "key" {
		t.Errorf("expected api key to be used as access token, got %q", model.AccessToken)
	}
	if model.ASRModel != "bigmodel" {
		t.Errorf("unexpected ASR model %q", model.ASRModel)
	}
}

func TestVoiceSilenceFrames(t *testing.T) {
	cases := []struct {
		ms   int
		want int
	}{
		{ms: 800, want: 40},
		{ms: 10, want: 1},
		{ms: 0, want: 1},
	}

	for _, tc := range cases {
		got := VoiceConfig{VADSilenceMS: tc.ms}.SilenceFrames()
		if got != tc.want {
			t.Errorf("SilenceFrames(%d) = %d, want %d", tc.ms, got, tc.want)
		}
	}
}
