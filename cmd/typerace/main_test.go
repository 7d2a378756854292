package main

import (
	"strings"
	"testing"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/typerace/internal/config"
	"github.com/verte-zerg/typerace/internal/model"
)

func TestValidateConfig(t *testing.T) {
	valid := model.Config{ServerURL: "ws://localhost:5000/ws", Countdown: 3, LogLevel: "info"}
	if err := validateConfig(valid); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	cases := []model.Config{
		{ServerURL: "", LogLevel: "info"},
		{ServerURL: "http://localhost", LogLevel: "info"},
		{ServerURL: "ws://localhost", Countdown: -1, LogLevel: "info"},
		{ServerURL: "ws://localhost", LogLevel: "loud"},
	}
	for _, cfg := range cases {
		if err := validateConfig(cfg); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}

func TestConfigTemplateDecodes(t *testing.T) {
	var cfg config.FileConfig
	if _, err := toml.Decode(defaultConfigTemplate(), &cfg); err != nil {
		t.Fatalf("template does not decode: %v", err)
	}
	if cfg.Client.ServerURL != nil {
		t.Fatalf("expected commented defaults")
	}
	if !strings.Contains(defaultConfigTemplate(), config.EnvServerURL) {
		t.Fatalf("expected env variable hint in template")
	}
}

func TestApplyConfigRespectsChangedFlags(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.Flags().Set("server", "ws://flag"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	fromFile := "ws://file"
	applyStringConfig(cmd, "server", &playServerURL, &fromFile)
	if playServerURL != "ws://flag" {
		t.Fatalf("expected flag to win, got %s", playServerURL)
	}

	countdown := 7
	applyIntConfig(cmd, "countdown", &playCountdown, &countdown)
	if playCountdown != 7 {
		t.Fatalf("expected file value, got %d", playCountdown)
	}
}
