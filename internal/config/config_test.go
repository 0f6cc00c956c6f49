package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"telegram": {"api_id": 12345, "api_hash": "abc", "phone": "+15550001111"},
		"bot": {"token": "123:abc", "operator_id": 777},
		"batch": {"size": 20, "delay_seconds": 5, "max_fetch": 500},
		"data_dir": "/tmp/telefetch"
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.APIID != 12345 {
		t.Errorf("api_id = %d", cfg.Telegram.APIID)
	}
	if cfg.Bot.Operator != 777 {
		t.Errorf("operator = %d", cfg.Bot.Operator)
	}
	if cfg.Batch.Size != 20 || cfg.Batch.DelaySeconds != 5 || cfg.Batch.MaxFetch != 500 {
		t.Errorf("batch = %+v", cfg.Batch)
	}
	if cfg.Telegram.SessionFile != filepath.Join("/tmp/telefetch", "telefetch.session") {
		t.Errorf("session file = %q", cfg.Telegram.SessionFile)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `{
		"telegram": {"api_id": 1, "api_hash": "x", "phone": "+1"},
		"bot": {"token": "t", "operator_id": 1}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Batch.Size != 10 {
		t.Errorf("default batch size = %d", cfg.Batch.Size)
	}
	if cfg.Batch.DelaySeconds != 3 {
		t.Errorf("default batch delay = %d", cfg.Batch.DelaySeconds)
	}
	if cfg.Batch.MaxFetch != 1000 {
		t.Errorf("default max fetch = %d", cfg.Batch.MaxFetch)
	}
	if cfg.Retention != 30 {
		t.Errorf("default retention = %d", cfg.Retention)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	path := writeConfig(t, `{"telegram": {"api_id": 1}}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"api_hash", "phone", "token", "operator_id"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %s: %v", want, err)
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TELEFETCH_API_ID", "999")
	t.Setenv("TELEFETCH_API_HASH", "envhash")
	t.Setenv("TELEFETCH_PHONE", "+15550002222")
	t.Setenv("TELEFETCH_BOT_TOKEN", "456:def")
	t.Setenv("TELEFETCH_OPERATOR_ID", "4242")
	t.Setenv("TELEFETCH_BATCH_SIZE", "15")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Telegram.APIID != 999 || cfg.Telegram.APIHash != "envhash" {
		t.Errorf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Bot.Operator != 4242 {
		t.Errorf("operator = %d", cfg.Bot.Operator)
	}
	if cfg.Batch.Size != 15 {
		t.Errorf("batch size = %d", cfg.Batch.Size)
	}
	if cfg.Batch.DelaySeconds != 3 {
		t.Errorf("defaulted batch delay = %d", cfg.Batch.DelaySeconds)
	}
}
