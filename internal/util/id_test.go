package util

import "testing"

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if len(id) != 36 {
			t.Fatalf("NewID() = %q, want uuid form", id)
		}
		if seen[id] {
			t.Fatalf("NewID() repeated %q", id)
		}
		seen[id] = true
	}
}

func TestNewToken(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken() error = %v", err)
	}
	b, _ := NewToken()
	if len(a) != 64 || a == b {
		t.Fatalf("NewToken() = %q, %q; want distinct 64-char tokens", a, b)
	}
}
