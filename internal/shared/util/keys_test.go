package util

import (
	"strings"
	"testing"
)

func TestHashUserKey(t *testing.T) {
	id := "user_2abcDEF"
	got := HashUserKey(id)
	if got != HashUserKey(id) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	if got == HashUserKey("user_other") {
		t.Fatalf("expected distinct users to hash differently")
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "gear.png", want: "gear.png"},
		{in: " dir/sub\\valve.jpg ", want: "dir_sub_valve.jpg"},
		{in: "pump housing #2.JPG", want: "pump_housing__2.JPG"},
		{in: "../secret", want: "._secret"},
		{in: "seal..v2.png", want: "seal.v2.png"},
		{in: "a/../../b.jpg", want: "a_._._b.jpg"},
		{in: "   ", wantErr: true},
	}
	long, err := SanitizeFileName(strings.Repeat("a", 200) + ".png")
	if err != nil || len(long) != maxFileNameLen {
		t.Fatalf("expected name capped at %d, got %d (%v)", maxFileNameLen, len(long), err)
	}
	for _, tt := range tests {
		got, err := SanitizeFileName(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("SanitizeFileName(%q) expected error", tt.in)
			}
			continue
		}
		if strings.Contains(got, "..") || strings.ContainsAny(got, "/\\") {
			t.Fatalf("SanitizeFileName(%q) = %q is not path safe", tt.in, got)
		}
		if err != nil || got != tt.want {
			t.Fatalf("SanitizeFileName(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
