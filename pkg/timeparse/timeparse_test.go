package timeparse

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	type tcase struct {
		input string
		want  time.Duration
		err   error
	}
	tests := map[string]tcase{
		"empty":          {input: "", want: Permanent},
		"zero":           {input: "0", want: Permanent},
		"zero_with_unit": {input: "0d", want: Permanent},
		"bare_minutes":   {input: "15", want: 15 * time.Minute},
		"seconds":        {input: "45s", want: 45 * time.Second},
		"minutes":        {input: "30m", want: 30 * time.Minute},
		"hours":          {input: "2h", want: 2 * time.Hour},
		"days":           {input: "3d", want: 3 * Day},
		"weeks":          {input: "1w", want: Week},
		"months":         {input: "2M", want: 60 * Day},
		"years":          {input: "1y", want: 365 * Day},
		"trimmed":        {input: " 5m ", want: 5 * time.Minute},
		"negative":       {input: "-5m", err: ErrInvalidDuration},
		"unknown_unit":   {input: "5x", err: ErrInvalidDuration},
		"word":           {input: "forever", err: ErrInvalidDuration},
		"overflow":       {input: "999999999999y", err: ErrInvalidDuration},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := Parse(tc.input)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("Parse(%q): want error %v, got %v", tc.input, tc.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q): unexpected error: %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("Parse(%q): want %v got %v", tc.input, tc.want, got)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := map[time.Duration]string{
		0:                "permanent",
		10 * time.Second: "10 seconds",
		time.Minute:      "1 minute",
		90 * time.Minute: "1 hour",
		5 * time.Hour:    "5 hours",
		Day:              "1 day",
		10 * Day:         "1 week",
		Month:            "1 month",
		2 * Month:        "2 months",
		400 * Day:        "1 year",
		3 * Year:         "3 years",
	}
	for d, want := range tests {
		if got := Format(d); got != want {
			t.Errorf("Format(%v): want %q got %q", d, want, got)
		}
	}
}

func TestIsDuration(t *testing.T) {
	if !IsDuration("10m") || !IsDuration("0") {
		t.Fatal("IsDuration: expected valid durations to match")
	}
	if IsDuration("cheater") {
		t.Fatal("IsDuration: expected a reason word not to match")
	}
}
