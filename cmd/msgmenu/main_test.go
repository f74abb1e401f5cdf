package main

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/example/msgmenu/internal/config"
)

func TestParseGlobalFlagsStopsAtCommand(t *testing.T) {
	args := []string{"--debug", "--socket", "unix:///tmp/m.sock", "activate", "--dismiss", "mail.src.a"}
	opts, rest, err := parseGlobalFlags(args)
	if err != nil {
		t.Fatalf("parseGlobalFlags returned error: %v", err)
	}
	if !opts.debug {
		t.Fatalf("expected debug flag to be enabled")
	}
	if opts.socket != "unix:///tmp/m.sock" {
		t.Fatalf("unexpected socket %q", opts.socket)
	}
	want := []string{"activate", "--dismiss", "mail.src.a"}
	if !reflect.DeepEqual(rest, want) {
		t.Fatalf("unexpected remaining args: %#v", rest)
	}
}

func TestParseGlobalFlagsWithoutCommand(t *testing.T) {
	opts, rest, err := parseGlobalFlags([]string{"--config=/etc/msgmenu.yaml", "--token", "abc"})
	if err != nil {
		t.Fatalf("parseGlobalFlags returned error: %v", err)
	}
	if opts.configPath != "/etc/msgmenu.yaml" || opts.token != "abc" {
		t.Fatalf("unexpected options %+v", opts)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no command, got %#v", rest)
	}
}

func TestParseGlobalFlagsRejectsUnknownFlag(t *testing.T) {
	if _, _, err := parseGlobalFlags([]string{"--offline", "menu"}); err == nil {
		t.Fatalf("expected an error for an unknown global flag")
	}
}

func TestLoadConfigAppliesFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := loadConfig(globalOptions{configPath: path, socket: "tcp://127.0.0.1:7070", token: "t", debug: true})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Socket != "tcp://127.0.0.1:7070" || cfg.Token != "t" || !cfg.Debug {
		t.Fatalf("flag overrides not applied: %+v", cfg)
	}
	if cfg.Menu.Variant != config.VariantSectioned {
		t.Fatalf("unexpected variant %q", cfg.Menu.Variant)
	}
	if ep := cfg.Endpoint(); ep.Network != "tcp" || ep.Address != "127.0.0.1:7070" {
		t.Fatalf("unexpected endpoint %+v", ep)
	}
}

func TestNormalizeCommand(t *testing.T) {
	cases := map[string]string{"--Menu": "menu", "/clear": "clear", "Register": "register"}
	for in, want := range cases {
		if got := normalizeCommand(in); got != want {
			t.Fatalf("normalizeCommand(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseListAndTruncate(t *testing.T) {
	if got := parseList(" a, ,b "); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected list %#v", got)
	}
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncate("abc", 6); got != "abc" {
		t.Fatalf("short values must be kept, got %q", got)
	}
}
