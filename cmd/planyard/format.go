package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/planyard/internal/plan"
)

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func formatDay(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format("2006-01-02")
}

// formatVariance renders a day variance with its sign and band, e.g.
// "+3 (major_slip)".
func formatVariance(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+d (%s)", *v, plan.Band(*v))
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
