package aggregator

import "testing"

func TestSelectPartitionsProportionally(t *testing.T) {
	a := New()
	a.SetRate(EventAdd, 1.0)
	a.SetRate(EventFollow, 3.0)
	a.SetRate(EventTweet, 0.0)
	a.SetRate(EventRetweet, 0.0)

	// Total is 4.0: [0, 0.25) -> add, [0.25, 1.0) -> follow.
	if class, ok := a.Select(0.0); !ok || class != EventAdd {
		t.Fatalf("expected add at u=0, got %v ok=%v", class, ok)
	}
	if class, ok := a.Select(0.24); !ok || class != EventAdd {
		t.Fatalf("expected add at u=0.24, got %v ok=%v", class, ok)
	}
	if class, ok := a.Select(0.26); !ok || class != EventFollow {
		t.Fatalf("expected follow at u=0.26, got %v ok=%v", class, ok)
	}
	if class, ok := a.Select(0.999999); !ok || class != EventFollow {
		t.Fatalf("expected follow at u~1, got %v ok=%v", class, ok)
	}
}

func TestSelectOnZeroTotalReportsFalse(t *testing.T) {
	a := New()
	if _, ok := a.Select(0.5); ok {
		t.Fatal("expected no selection when total rate is zero")
	}
}

func TestTotalSumsAllCategories(t *testing.T) {
	a := New()
	a.SetRate(EventAdd, 1.5)
	a.SetRate(EventFollow, 2.5)
	a.SetRate(EventTweet, 1.0)
	a.SetRate(EventRetweet, 0.5)
	if got := a.Total(); got != 5.5 {
		t.Fatalf("expected total 5.5, got %v", got)
	}
}

func TestEventClassString(t *testing.T) {
	cases := map[EventClass]string{
		EventAdd:     "add",
		EventFollow:  "follow",
		EventTweet:   "tweet",
		EventRetweet: "retweet",
	}
	for class, want := range cases {
		if got := class.String(); got != want {
			t.Fatalf("class %d: expected %q, got %q", class, want, got)
		}
	}
}
