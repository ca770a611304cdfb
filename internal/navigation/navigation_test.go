package navigation

import "testing"

func TestVideoRoute(t *testing.T) {
	if got := Video(42); got != "/video/42" {
		t.Fatalf("unexpected route %q", got)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	if r.Last() != "" {
		t.Fatal("expected empty recorder")
	}
	r.Navigate(Login)
	r.Navigate(VIP)

	targets := r.Targets()
	if len(targets) != 2 || targets[0] != Login || targets[1] != VIP {
		t.Fatalf("unexpected targets %v", targets)
	}
	targets[0] = "mutated"
	if r.Targets()[0] != Login {
		t.Fatal("Targets should return a copy")
	}
	if r.Last() != VIP {
		t.Fatalf("unexpected last %q", r.Last())
	}
}
