package registry

import "testing"

func TestLookupNotFound(t *testing.T) {
	r := New()
	if _, ok := r.Lookup("missing"); ok {
		t.Fatal("expected ok=false for unregistered session")
	}
}

func TestRegisterThenLookup(t *testing.T) {
	r := New()
	r.Register("sess-1", "engine-a")

	h, ok := r.Lookup("sess-1")
	if !ok || h != "engine-a" {
		t.Fatalf("got (%v, %v), want (engine-a, true)", h, ok)
	}
}

// Session handle stability (§8 property 4): across any number of
// rebuilds, lookup keeps returning a non-NotFound value for the same id.
func TestUpdateKeepsSameSessionIDValid(t *testing.T) {
	r := New()
	r.Register("sess-1", "engine-a")
	r.Update("sess-1", "engine-b")
	r.Update("sess-1", "engine-c")

	h, ok := r.Lookup("sess-1")
	if !ok || h != "engine-c" {
		t.Fatalf("got (%v, %v), want (engine-c, true)", h, ok)
	}
}

func TestDeregisterRemovesEntry(t *testing.T) {
	r := New()
	r.Register("sess-1", "engine-a")
	r.Deregister("sess-1")

	if _, ok := r.Lookup("sess-1"); ok {
		t.Fatal("expected entry to be gone after Deregister")
	}
}
