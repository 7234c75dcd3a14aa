package rates

import "testing"

func TestLimiter_WindowResets(t *testing.T) {
	var l Limiter
	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("TELL", 10, 5, 3); !ok {
			t.Fatalf("call %d rejected", i)
		}
	}
	ok, cd := l.Allow("TELL", 12, 5, 3)
	if ok || cd != 3 {
		t.Fatalf("expected rejection with cooldown 3, got ok=%v cd=%d", ok, cd)
	}
	if ok, _ := l.Allow("ASK", 12, 5, 3); !ok {
		t.Fatalf("kinds must not share a window")
	}
	if ok, _ := l.Allow("TELL", 15, 5, 3); !ok {
		t.Fatalf("window should have reset at tick 15")
	}
}

func TestWindow_DisabledAdmitsAll(t *testing.T) {
	w := Window{}
	for i := 0; i < 100; i++ {
		if ok, _ := w.Allow(uint64(i)); !ok {
			t.Fatalf("disabled window rejected")
		}
	}
}
