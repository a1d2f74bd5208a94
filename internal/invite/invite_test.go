package invite

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestGenerateDefaultLengthContract(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := Generate(DefaultLength)
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		assertCode(t, code, DefaultLength)
	}
}

func TestGenerateLengths(t *testing.T) {
	for _, length := range []int{2, 3, 8, 16, 64} {
		code, err := Generate(length)
		if err != nil {
			t.Fatalf("Generate(%d) returned error: %v", length, err)
		}
		assertCode(t, code, length)
	}
}

func TestGenerateRejectsShortLengths(t *testing.T) {
	for _, length := range []int{-1, 0, 1} {
		if _, err := Generate(length); !errors.Is(err, ErrInvalidLength) {
			t.Fatalf("Generate(%d): expected ErrInvalidLength, got %v", length, err)
		}
	}
}

func TestGenerateIsUniqueAcrossManyCalls(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		code, err := Generate(DefaultLength)
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if _, dup := seen[code]; dup {
			t.Fatalf("duplicate code %s after %d calls", code, i)
		}
		seen[code] = struct{}{}
	}
}

func TestGenerateOrderIsNotFixed(t *testing.T) {
	gen := NewGeneratorWithSource(rand.New(rand.NewPCG(1, 2)))

	letterFirst, digitFirst := false, false
	for i := 0; i < 200 && !(letterFirst && digitFirst); i++ {
		code, err := gen.Generate(2)
		if err != nil {
			t.Fatalf("Generate returned error: %v", err)
		}
		if strings.ContainsRune(Letters, rune(code[0])) {
			letterFirst = true
		} else {
			digitFirst = true
		}
	}

	if !letterFirst || !digitFirst {
		t.Fatalf("expected both letter-first and digit-first codes, got letterFirst=%v digitFirst=%v", letterFirst, digitFirst)
	}
}

func TestGeneratorWithSameSeedIsDeterministic(t *testing.T) {
	a := NewGeneratorWithSource(rand.New(rand.NewPCG(7, 7)))
	b := NewGeneratorWithSource(rand.New(rand.NewPCG(7, 7)))

	codeA, _ := a.Generate(DefaultLength)
	codeB, _ := b.Generate(DefaultLength)
	if codeA != codeB {
		t.Fatalf("expected identical codes for identical seeds, got %s and %s", codeA, codeB)
	}
}

func assertCode(t *testing.T, code string, length int) {
	t.Helper()

	if len(code) != length {
		t.Fatalf("expected length %d, got %d (%s)", length, len(code), code)
	}
	if strings.ContainsAny(code, "0O1I") {
		t.Fatalf("code %s contains an ambiguous character", code)
	}
	if !strings.ContainsAny(code, Letters) {
		t.Fatalf("code %s has no letter", code)
	}
	if !strings.ContainsAny(code, Digits) {
		t.Fatalf("code %s has no digit", code)
	}
	for _, r := range code {
		if !strings.ContainsRune(alphabet, r) {
			t.Fatalf("code %s contains %q outside the alphabet", code, r)
		}
	}
}
