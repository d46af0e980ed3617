package vars

import (
	"errors"
	"math"
	"testing"
)

func TestSubstitute_NoPlaceholders(t *testing.T) {
	s := NewStore()
	got, err := s.Substitute("plain text")
	if err != nil {
		t.Fatal(err)
	}
	if got != "plain text" {
		t.Errorf("got %q", got)
	}
}

func TestSubstitute_Idempotent(t *testing.T) {
	s := NewStore()
	s.SetNumber("base", 2)
	first, err := s.Substitute("value: $(base)")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Substitute(first)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("substitution not idempotent on a token-free string: %q vs %q", first, second)
	}
}

func TestSubstitute_UndefinedIsFatal(t *testing.T) {
	s := NewStore()
	_, err := s.Substitute("$(missing)")
	if !errors.Is(err, ErrUndefinedVariable) {
		t.Errorf("expected ErrUndefinedVariable, got %v", err)
	}
}

func TestRefreshPositionDuration_UnknownIsInf(t *testing.T) {
	s := NewStore()
	s.RefreshPositionDuration(nil, nil)
	pos, _ := s.Lookup("position")
	dur, _ := s.Lookup("duration")
	if !math.IsInf(pos, 1) || !math.IsInf(dur, 1) {
		t.Errorf("expected +Inf defaults, got position=%v duration=%v", pos, dur)
	}
}

func TestLookup_NonNumericStringIsUnbound(t *testing.T) {
	s := NewStore()
	s.SetString("name", "not-a-number")
	_, ok := s.Lookup("name")
	if ok {
		t.Error("expected non-numeric string variable to be unbound for expr lookup")
	}
}
