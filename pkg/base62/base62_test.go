package base62

import "testing"

func TestEncode(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0"},
		{1, "1"},
		{61, "z"},
		{62, "10"},
		{3843, "zz"},
		{123456789, "8M0kX"},
	}

	for _, tt := range tests {
		if got := Encode(tt.in); got != tt.want {
			t.Errorf("Encode(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		values := []uint64{0, 1, 61, 62, 4096, 1_000_000_007, 1<<63 - 1}
		for _, v := range values {
			got, err := Decode(Encode(v))
			if err != nil {
				t.Fatalf("Decode(Encode(%d)): %v", v, err)
			}
			if got != v {
				t.Errorf("roundtrip %d: got %d", v, got)
			}
		}
	})

	t.Run("rejects invalid characters", func(t *testing.T) {
		for _, s := range []string{"", "abc!", "ab cd", "a-b", "000000000000"} {
			if _, err := Decode(s); err == nil {
				t.Errorf("Decode(%q): expected error", s)
			}
		}
	})
}

func TestValid(t *testing.T) {
	if !Valid("aZ3x9Qm") {
		t.Error("aZ3x9Qm should be valid")
	}
	if Valid("abc_def") {
		t.Error("underscore should be invalid")
	}
	if !Valid("") {
		t.Error("empty string has no invalid bytes")
	}
}
