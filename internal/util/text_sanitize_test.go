package util

import "testing"

func TestSanitizeTextRemovesNulAndControls(t *testing.T) {
	in := "ab\x00cd\x01\x02\n\txy"
	out := SanitizeText(in)
	if out != "abcd\n\txy" {
		t.Fatalf("unexpected sanitized output: %q", out)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("abcdef", 4); got != "abcd" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := TruncateRunes("héllo", 2); got != "hé" {
		t.Fatalf("unexpected unicode truncation: %q", got)
	}
	if got := TruncateRunes("short", 100); got != "short" {
		t.Fatalf("short input must pass through: %q", got)
	}
}
