package util

import (
	"os"
	"testing"
)

func TestReadConfDefaults(t *testing.T) {
	// Run from a scratch dir so no local config.yaml is picked up.
	tmp := t.TempDir()
	wd, _ := os.Getwd()
	os.Chdir(tmp)
	t.Setenv("HOME", tmp)
	defer os.Chdir(wd)

	conf, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if conf.Conf.HttpPort != 8080 {
		t.Errorf("Expected default http port 8080, got %d", conf.Conf.HttpPort)
	}
	if conf.Conf.Domain != "localhost" {
		t.Errorf("Expected default domain localhost, got %s", conf.Conf.Domain)
	}
	if conf.Conf.WithFed {
		t.Error("Federation should be disabled by default")
	}
}

func TestReadConfEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	wd, _ := os.Getwd()
	os.Chdir(tmp)
	t.Setenv("HOME", tmp)
	defer os.Chdir(wd)

	t.Setenv("DORFPLATZ_HOST", "127.0.0.1")
	t.Setenv("DORFPLATZ_HTTPPORT", "9999")
	t.Setenv("DORFPLATZ_DOMAIN", "dorf.example")
	t.Setenv("DORFPLATZ_WITH_FED", "true")

	conf, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if conf.Conf.Host != "127.0.0.1" {
		t.Errorf("Expected host override, got %s", conf.Conf.Host)
	}
	if conf.Conf.HttpPort != 9999 {
		t.Errorf("Expected port override, got %d", conf.Conf.HttpPort)
	}
	if conf.Conf.Domain != "dorf.example" {
		t.Errorf("Expected domain override, got %s", conf.Conf.Domain)
	}
	if !conf.Conf.WithFed {
		t.Error("Expected federation enabled by env override")
	}
}

func TestActorAndSharedInboxURIs(t *testing.T) {
	conf := &AppConfig{}
	conf.Conf.Domain = "dorf.example"

	if got := conf.ActorURI("alice"); got != "https://dorf.example/users/alice" {
		t.Errorf("Unexpected actor URI: %s", got)
	}
	if got := conf.SharedInboxURI(); got != "https://dorf.example/inbox" {
		t.Errorf("Unexpected shared inbox URI: %s", got)
	}
}
