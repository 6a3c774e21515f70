package main

import "testing"

func TestGetConfigPath(t *testing.T) {
	t.Setenv("HERPKEEPER_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("HERPKEEPER_CONFIG", "/etc/herpkeeper/config.yaml")
	if got := getConfigPath(); got != "/etc/herpkeeper/config.yaml" {
		t.Errorf("getConfigPath() with override = %q", got)
	}
}
