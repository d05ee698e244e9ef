package chrono

import (
	"errors"
	"testing"
)

func TestScanInt(t *testing.T) {
	tests := []struct {
		text   string
		pos    int
		width  int
		signed bool
		want   int
		kind   Kind
	}{
		{text: "2023", width: 4, want: 2023},
		{text: "x0042", pos: 1, width: 4, want: 42},
		{text: "-12", width: 3, signed: true, want: -12},
		{text: "+12", width: 3, signed: true, want: 12},
		{text: "-12", width: 3, kind: MalformedNumber},
		{text: "-", width: 1, signed: true, kind: MalformedNumber},
		{text: "20a3", width: 4, kind: MalformedNumber},
		{text: "202", width: 4, kind: TruncatedInput},
		{text: "2023", pos: 3, width: 2, kind: TruncatedInput},
		{text: "2023", width: 0, kind: MalformedNumber},
	}
	for _, tt := range tests {
		got, n, err := scanInt(tt.text, tt.pos, tt.width, tt.signed, "test")
		if tt.kind != 0 {
			if !errors.Is(err, tt.kind) {
				t.Errorf("scanInt(%q, %d, %d) error = %v, want %v", tt.text, tt.pos, tt.width, err, tt.kind)
			}
			continue
		}
		if err != nil {
			t.Errorf("scanInt(%q, %d, %d) error: %v", tt.text, tt.pos, tt.width, err)
			continue
		}
		if got != tt.want || n != tt.width {
			t.Errorf("scanInt(%q, %d, %d) = %d, %d; want %d, %d", tt.text, tt.pos, tt.width, got, n, tt.want, tt.width)
		}
	}
}

func TestScanDigits(t *testing.T) {
	tests := []struct {
		text  string
		max   int
		want  int
		wantN int
		kind  Kind
	}{
		{text: "5", max: 9, want: 5, wantN: 1},
		{text: "123+0100", max: 9, want: 123, wantN: 3},
		{text: "1234567890", max: 9, want: 123456789, wantN: 9},
		{text: "", max: 9, kind: TruncatedInput},
		{text: "Z", max: 9, kind: MalformedNumber},
	}
	for _, tt := range tests {
		got, n, err := scanDigits(tt.text, 0, tt.max, "test")
		if tt.kind != 0 {
			if !errors.Is(err, tt.kind) {
				t.Errorf("scanDigits(%q) error = %v, want %v", tt.text, err, tt.kind)
			}
			continue
		}
		if err != nil {
			t.Errorf("scanDigits(%q) error: %v", tt.text, err)
			continue
		}
		if got != tt.want || n != tt.wantN {
			t.Errorf("scanDigits(%q) = %d, %d; want %d, %d", tt.text, got, n, tt.want, tt.wantN)
		}
	}
}
