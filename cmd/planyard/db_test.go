package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestDBCmdHelp(t *testing.T) {
	out, err := runCLI(t, "db", "--help")
	if err != nil {
		t.Fatalf("db --help failed: %v", err)
	}
	for _, sub := range []string{"init", "migrate", "reset"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected db help to list %q, got: %s", sub, out)
		}
	}
}

func TestDBResetFlags(t *testing.T) {
	cmd := newDBResetCmd()
	for _, name := range []string{"config", "yes", "force"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag on db reset", name)
		}
	}
	if f := cmd.Flags().Lookup("config"); f.DefValue != "planyard.yaml" {
		t.Errorf("--config default = %q, want planyard.yaml", f.DefValue)
	}
	if f := cmd.Flags().ShorthandLookup("y"); f == nil || f.Name != "yes" {
		t.Error("expected -y shorthand for --yes")
	}
}

func TestDBInit_SQLite(t *testing.T) {
	cfg := writeConfig(t)

	out, err := runCLI(t, "db", "init", "-c", cfg)
	if err != nil {
		t.Fatalf("db init: %v", err)
	}
	if !strings.Contains(out, "Migrated 4 tables") {
		t.Errorf("expected migrate line, got: %s", out)
	}
	if !strings.Contains(out, "initialized successfully") {
		t.Errorf("expected success line, got: %s", out)
	}

	out, err = runCLI(t, "db", "migrate", "-c", cfg)
	if err != nil {
		t.Fatalf("db migrate: %v", err)
	}
	if !strings.Contains(out, "Migrated 4 tables") {
		t.Errorf("expected migrate line, got: %s", out)
	}
}

func TestDBReset_Aborted(t *testing.T) {
	cfg := writeConfig(t)
	if _, err := runCLI(t, "db", "init", "-c", cfg); err != nil {
		t.Fatalf("db init: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetIn(strings.NewReader("no\n"))
	cmd.SetArgs([]string{"db", "reset", "-c", cfg})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("db reset: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Type \"yes\" to confirm") {
		t.Errorf("expected prompt, got: %s", out)
	}
	if !strings.Contains(out, "Aborted.") {
		t.Errorf("expected abort, got: %s", out)
	}
}

func TestDBReset_Confirmed(t *testing.T) {
	cfg := writeConfig(t)
	if _, err := runCLI(t, "plan", "create", "-c", cfg, "-p", "proj", "--title", "Launch"); err != nil {
		t.Fatalf("plan create: %v", err)
	}

	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetIn(strings.NewReader("yes\n"))
	cmd.SetArgs([]string{"db", "reset", "-c", cfg})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("db reset: %v", err)
	}
	if !strings.Contains(buf.String(), "reset and re-initialized") {
		t.Errorf("expected reset success, got: %s", buf.String())
	}

	out, err := runCLI(t, "plan", "list", "-c", cfg, "-p", "proj")
	if err != nil {
		t.Fatalf("plan list: %v", err)
	}
	if !strings.Contains(out, "No plans found.") {
		t.Errorf("expected empty store after reset, got: %s", out)
	}
}

func TestDBReset_Yes(t *testing.T) {
	cfg := writeConfig(t)
	out, err := runCLI(t, "db", "reset", "-c", cfg, "--yes")
	if err != nil {
		t.Fatalf("db reset --yes: %v", err)
	}
	if strings.Contains(out, "Type \"yes\"") {
		t.Errorf("--yes should skip the prompt, got: %s", out)
	}
	if !strings.Contains(out, "Dropped tables") {
		t.Errorf("expected drop line, got: %s", out)
	}
}
