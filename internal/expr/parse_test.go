package expr

import (
	"errors"
	"math/rand"
	"testing"

	"eudoxus/internal/operator"
)

func TestParseRoundTrip(t *testing.T) {
	r := testRegistry(t)
	rng := rand.New(rand.NewSource(41))

	for i := 0; i < 100; i++ {
		e := Generate(rng, r, GenConfig{})
		parsed, err := Parse(r, e.String())
		if err != nil {
			t.Fatalf("draw %d: parse %q: %v", i, e.String(), err)
		}
		if parsed.String() != e.String() {
			t.Fatalf("draw %d: round trip %q -> %q", i, e.String(), parsed.String())
		}
	}
}

func TestParseAnonymousConstant(t *testing.T) {
	r := testRegistry(t)

	e, err := Parse(r, "MUL -42.5 TIME")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got, err := e.Eval(2, 0)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if got != -85 {
		t.Fatalf("-42.5*t at t=2 = %v, want -85", got)
	}
}

func TestParseUnknownToken(t *testing.T) {
	r := testRegistry(t)

	_, err := Parse(r, "ADD TIME BOGUS")
	if !errors.Is(err, operator.ErrTokenNotFound) {
		t.Fatalf("parse with unknown token: got %v, want ErrTokenNotFound", err)
	}
}

func TestParseUnbalanced(t *testing.T) {
	r := testRegistry(t)

	cases := []string{
		"",
		"   ",
		"ADD TIME",
		"TIME POS",
		"ADD TIME POS POS",
	}
	for _, text := range cases {
		if _, err := Parse(r, text); !errors.Is(err, ErrUnbalanced) {
			t.Fatalf("parse %q: got %v, want ErrUnbalanced", text, err)
		}
	}
}
