package main

import (
	"reflect"
	"testing"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a much longer title", 10, "a much ..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestFormatVariance(t *testing.T) {
	v := func(n int) *int { return &n }
	tests := []struct {
		in   *int
		want string
	}{
		{nil, "-"},
		{v(-3), "-3 (ahead)"},
		{v(0), "+0 (on_track)"},
		{v(2), "+2 (minor_slip)"},
		{v(5), "+5 (major_slip)"},
	}
	for _, tt := range tests {
		if got := formatVariance(tt.in); got != tt.want {
			t.Errorf("formatVariance = %q, want %q", got, tt.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList(" a, ,b,c "); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("splitList = %v", got)
	}
	if got := splitList(""); got != nil {
		t.Errorf("splitList(\"\") = %v, want nil", got)
	}
}

func TestOrDash(t *testing.T) {
	empty, alice := "", "alice"
	if got := orDash(nil); got != "-" {
		t.Errorf("orDash(nil) = %q", got)
	}
	if got := orDash(&empty); got != "-" {
		t.Errorf("orDash(\"\") = %q", got)
	}
	if got := orDash(&alice); got != "alice" {
		t.Errorf("orDash(alice) = %q", got)
	}
}
