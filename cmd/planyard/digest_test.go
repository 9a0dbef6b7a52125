package main

import (
	"testing"
)

func TestDigestRun_Print(t *testing.T) {
	cfg := importedPlan(t)

	// The imported tasks are all due in January 2025, so they are overdue.
	out := mustRun(t, "digest", "run", "--print", "-c", cfg)
	assertContains(t, out, "Plan digest for proj (Launch)", "Overdue (4)", "Write docs")
}

func TestDigestRun_NoActivePlans(t *testing.T) {
	cfg := writeConfig(t)
	out := mustRun(t, "digest", "run", "--print", "-c", cfg)
	assertContains(t, out, "No active plans.")
}

func TestServeFlags(t *testing.T) {
	cmd := newServeCmd()
	for _, name := range []string{"config", "port", "digest"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected --%s flag on serve", name)
		}
	}
}
