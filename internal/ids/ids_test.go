package ids

import "testing"

func TestNewIsMonotonic(t *testing.T) {
	a, b := New(), New()
	if a >= b {
		t.Fatalf("expected increasing ids, got %s then %s", a, b)
	}
}

func TestSanitize(t *testing.T) {
	id := New()
	if got := Sanitize(id); got != id {
		t.Fatalf("valid id rewritten: %s -> %s", id, got)
	}
	if got := Sanitize("<script>"); got == "<script>" || len(got) != len(id) {
		t.Fatalf("invalid id not replaced: %q", got)
	}
}
