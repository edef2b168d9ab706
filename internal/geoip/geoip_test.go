package geoip

import "testing"

func TestNew_EmptyPath(t *testing.T) {
	r := New("")
	if r.Enabled() {
		t.Error("expected resolver without database to be disabled")
	}
	loc, err := r.Lookup("8.8.8.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc != (Location{}) {
		t.Errorf("expected empty location, got %+v", loc)
	}
}

func TestNew_InvalidPath(t *testing.T) {
	r := New("/nonexistent/path.mmdb")
	if r.Enabled() {
		t.Error("expected missing database to disable geolocation")
	}
	if loc, _ := r.Lookup("8.8.8.8"); loc != (Location{}) {
		t.Errorf("expected empty location, got %+v", loc)
	}
}

func TestNilResolver(t *testing.T) {
	var r *Resolver
	if r.Enabled() {
		t.Error("expected nil resolver to be disabled")
	}
	if loc, err := r.Lookup("8.8.8.8"); err != nil || loc != (Location{}) {
		t.Errorf("expected empty lookup, got %+v, %v", loc, err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("expected nil close error, got %v", err)
	}
}
