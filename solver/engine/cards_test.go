package engine

import (
	"errors"
	"testing"
)

func TestCardIndexSymbolRoundTrip(t *testing.T) {
	for n := 1; n <= NumCards; n++ {
		c, err := NewCardIndex(n)
		if err != nil {
			t.Fatalf("NewCardIndex(%d) returned error: %v", n, err)
		}
		got, err := CardFromSymbol(c.String())
		if err != nil {
			t.Fatalf("CardFromSymbol(%q) returned error: %v", c.String(), err)
		}
		if got != c {
			t.Fatalf("round trip of %d: got %d", n, got)
		}
	}
}

func TestCardIndexOutOfRange(t *testing.T) {
	for _, n := range []int{0, 45, -1} {
		if _, err := NewCardIndex(n); !errors.Is(err, ErrCardOutOfRange) {
			t.Fatalf("NewCardIndex(%d): expected ErrCardOutOfRange, got %v", n, err)
		}
	}
}

func TestAllCardsOrder(t *testing.T) {
	for i, c := range AllCards() {
		if c != MustCardIndex(i+1) {
			t.Fatalf("AllCards()[%d] = %d", i, c)
		}
	}
}

func TestCardCodes(t *testing.T) {
	cases := []struct {
		n    int
		code string
		sym  string
	}{
		{1, "01", "あ"},
		{6, "06", "か"},
		{44, "44", "わ"},
	}
	for _, tc := range cases {
		c := MustCardIndex(tc.n)
		if c.Code() != tc.code {
			t.Errorf("Code(%d) = %q, want %q", tc.n, c.Code(), tc.code)
		}
		if c.String() != tc.sym {
			t.Errorf("String(%d) = %q, want %q", tc.n, c.String(), tc.sym)
		}
		back, err := CardFromCode(tc.code)
		if err != nil || back != c {
			t.Errorf("CardFromCode(%q) = %d, %v", tc.code, back, err)
		}
	}
	if _, err := CardFromCode("45"); !errors.Is(err, ErrCardOutOfRange) {
		t.Fatalf("CardFromCode(45): expected ErrCardOutOfRange, got %v", err)
	}
	if _, err := CardFromSymbol("ん"); err == nil {
		t.Fatalf("CardFromSymbol(ん): expected error")
	}
}
