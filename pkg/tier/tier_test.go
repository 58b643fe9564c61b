package tier

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		degree int
		want   Tier
	}{
		{name: "isolated", degree: 0, want: Leaf},
		{name: "below_medium", degree: 4, want: Leaf},
		{name: "medium_floor", degree: 5, want: Medium},
		{name: "below_hub", degree: 49, want: Medium},
		{name: "hub_floor", degree: 50, want: Hub},
		{name: "large_hub", degree: 4000, want: Hub},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.degree); got != tc.want {
				t.Fatalf("Classify(%d) = %s, want %s", tc.degree, got, tc.want)
			}
		})
	}
}

func TestClassify_Monotonic(t *testing.T) {
	prev := Classify(0)
	for d := 1; d <= 500; d++ {
		cur := Classify(d)
		if cur < prev {
			t.Fatalf("tier dropped from %s to %s at degree %d", prev, cur, d)
		}
		prev = cur
	}
}

func TestScale_Monotonic(t *testing.T) {
	prev := Scale(0, Classify(0))
	for d := 1; d <= 1000; d++ {
		cur := Scale(d, Classify(d))
		if cur < prev {
			t.Fatalf("scale dropped from %f to %f at degree %d", prev, cur, d)
		}
		prev = cur
	}
	if got := Scale(10000, Hub); got != maxScale {
		t.Fatalf("expected hub scale to cap at %f, got %f", maxScale, got)
	}
}

func TestScale_LeavesShareOneScale(t *testing.T) {
	for d := 0; d < 5; d++ {
		if got := Scale(d, Leaf); got != leafScale {
			t.Fatalf("Scale(%d, leaf) = %f, want %f", d, got, leafScale)
		}
	}
}

func TestTier_MarshalText(t *testing.T) {
	b, err := Hub.MarshalText()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "hub" {
		t.Fatalf("got %q, want %q", b, "hub")
	}

	for _, want := range []Tier{Leaf, Medium, Hub} {
		b, err := want.MarshalText()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got Tier
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("unmarshal %q: %v", b, err)
		}
		if got != want {
			t.Fatalf("round trip of %s gave %s", want, got)
		}
	}

	var bad Tier
	if err := bad.UnmarshalText([]byte("giant")); err == nil {
		t.Fatal("expected an error for an unknown tier")
	}
}
