package alerr

import "testing"

func TestEditDistance(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"users", "users", 0},
		{"users", "user", 1},
		{"ghost", "hosts", 2},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			if got := editDistance(tt.a, tt.b); got != tt.want {
				t.Errorf("editDistance(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFindClosestMatch(t *testing.T) {
	options := []string{"accounts", "orders", "order_items"}

	if got, ok := FindClosestMatch("acounts", options); !ok || got != "accounts" {
		t.Errorf("FindClosestMatch(acounts) = %q, %v", got, ok)
	}
	if got, ok := FindClosestMatch("ORDERS", options); !ok || got != "orders" {
		t.Errorf("FindClosestMatch(ORDERS) = %q, %v", got, ok)
	}
	if _, ok := FindClosestMatch("zzzzzzzz", options); ok {
		t.Error("unrelated input should not match")
	}
}

func TestSuggestSimilar(t *testing.T) {
	got := SuggestSimilar([]string{"acounts", "zzzzzzzz"}, []string{"accounts"})
	if got != "acounts: did you mean 'accounts'?" {
		t.Errorf("SuggestSimilar() = %q", got)
	}
	if SuggestSimilar([]string{"zzzzzzzz"}, []string{"accounts"}) != "" {
		t.Error("expected no suggestion")
	}
}
