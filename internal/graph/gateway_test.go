package graph

import "testing"

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  int64
	}{
		{"nil", nil, 0},
		{"int64", int64(42), 42},
		{"int", 7, 7},
		{"float truncates", 3.9, 3},
		{"numeric string", "123", 123},
		{"garbage string", "not-a-number", 0},
		{"bool is unrecognized", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeValue(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeValue(%#v) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeString(t *testing.T) {
	if got := NormalizeString(nil); got != "" {
		t.Errorf("NormalizeString(nil) = %q, want empty", got)
	}
	if got := NormalizeString("hello"); got != "hello" {
		t.Errorf("NormalizeString(%q) = %q", "hello", got)
	}
}

func TestNormalizeBool(t *testing.T) {
	if NormalizeBool(nil) {
		t.Error("NormalizeBool(nil) should be false")
	}
	if !NormalizeBool(true) {
		t.Error("NormalizeBool(true) should be true")
	}
}

func TestNormalizeStringSlice(t *testing.T) {
	if got := NormalizeStringSlice(nil); got != nil {
		t.Errorf("NormalizeStringSlice(nil) = %v, want nil", got)
	}
	in := []any{"a", "b", 3, "c"}
	got := NormalizeStringSlice(in)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeStringSlice(%v) = %v, want %v", in, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("element %d = %q, want %q", i, got[i], want[i])
		}
	}
}
