package dates

import (
	"testing"
	"time"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func TestAddDays(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"forward", "2025-01-10T09:30:00Z", 7, "2025-01-17T09:30:00Z"},
		{"backward", "2025-01-10T09:30:00Z", -10, "2024-12-31T09:30:00Z"},
		{"zero", "2025-01-10T09:30:00Z", 0, "2025-01-10T09:30:00Z"},
		{"leap day", "2024-02-28T00:00:00Z", 1, "2024-02-29T00:00:00Z"},
		{"month end", "2025-01-31T23:59:00Z", 1, "2025-02-01T23:59:00Z"},
		{"offset input normalised to UTC", "2025-03-01T01:00:00+02:00", 1, "2025-03-01T23:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AddDays(ts(tt.in), tt.n)
			if !got.Equal(ts(tt.want)) {
				t.Errorf("AddDays(%s, %d) = %s, want %s", tt.in, tt.n, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("AddDays location = %v, want UTC", got.Location())
			}
		})
	}
}

func TestDayDiff(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"same instant", "2025-01-10T00:00:00Z", "2025-01-10T00:00:00Z", 0},
		{"five later", "2025-01-15T00:00:00Z", "2025-01-10T00:00:00Z", 5},
		{"two earlier", "2025-01-08T00:00:00Z", "2025-01-10T00:00:00Z", -2},
		{"23h rounds to one", "2025-01-10T23:00:00Z", "2025-01-10T00:00:00Z", 1},
		{"11h rounds to zero", "2025-01-10T11:00:00Z", "2025-01-10T00:00:00Z", 0},
		{"36h rounds to two", "2025-01-11T12:00:00Z", "2025-01-10T00:00:00Z", 2},
		{"negative 25h", "2025-01-09T00:00:00Z", "2025-01-10T01:00:00Z", -1},
		{"12h rounds up to one", "2025-01-10T12:00:00Z", "2025-01-10T00:00:00Z", 1},
		{"negative 12h rounds up to zero", "2025-01-10T00:00:00Z", "2025-01-10T12:00:00Z", 0},
		{"negative 36h rounds up to minus one", "2025-01-09T00:00:00Z", "2025-01-10T12:00:00Z", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DayDiff(ptr(ts(tt.a)), ptr(ts(tt.b)))
			if !ok {
				t.Fatal("DayDiff ok = false, want true")
			}
			if got != tt.want {
				t.Errorf("DayDiff(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDayDiff_MissingSide(t *testing.T) {
	now := time.Now()
	if _, ok := DayDiff(nil, &now); ok {
		t.Error("DayDiff(nil, t) ok = true, want false")
	}
	if _, ok := DayDiff(&now, nil); ok {
		t.Error("DayDiff(t, nil) ok = true, want false")
	}
	if _, ok := DayDiff(nil, nil); ok {
		t.Error("DayDiff(nil, nil) ok = true, want false")
	}
}

func TestShift(t *testing.T) {
	if Shift(nil, 3) != nil {
		t.Error("Shift(nil) should stay nil")
	}
	in := ts("2025-01-10T00:00:00Z")
	got := Shift(&in, 3)
	if got == nil || !got.Equal(ts("2025-01-13T00:00:00Z")) {
		t.Errorf("Shift = %v, want 2025-01-13", got)
	}
	if !in.Equal(ts("2025-01-10T00:00:00Z")) {
		t.Error("Shift must not mutate its input")
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2025-01-10T08:00:00Z", "2025-01-10T08:00:00Z", false},
		{"2025-01-10T08:00:00.123Z", "2025-01-10T08:00:00.123Z", false},
		{"2025-01-10T10:00:00+02:00", "2025-01-10T08:00:00Z", false},
		{"2025-01-10", "2025-01-10T00:00:00Z", false},
		{"  2025-01-10  ", "2025-01-10T00:00:00Z", false},
		{"", "", true},
		{"tomorrow", "", true},
		{"2025-13-01", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTimestamp(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimestamp(%q) expected error, got %v", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimestamp(%q): %v", tt.in, err)
			continue
		}
		want, _ := time.Parse(time.RFC3339Nano, tt.want)
		if !got.Equal(want) {
			t.Errorf("ParseTimestamp(%q) = %s, want %s", tt.in, got, want)
		}
	}
}

func TestClamp(t *testing.T) {
	tests := []struct{ n, want int }{
		{-5, 1}, {0, 1}, {1, 1}, {30, 30}, {60, 60}, {61, 60}, {1000, 60},
	}
	for _, tt := range tests {
		if got := Clamp(tt.n, 1, 60); got != tt.want {
			t.Errorf("Clamp(%d, 1, 60) = %d, want %d", tt.n, got, tt.want)
		}
	}
}
