package chunker

import (
	"math/rand"
	"strings"
	"testing"
)

func TestSplit_ConcatenationReproducesInput(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
	}{
		{
			name:   "small object",
			input:  `{"title":"Hello","tags":["a","b"]}`,
			maxLen: 10,
		},
		{
			name:   "adjacent top-level objects",
			input:  `{"a":1}{"b":2}{"c":3}`,
			maxLen: 5,
		},
		{
			name:   "escaped quotes inside strings",
			input:  `{"name":"says \"hi\" often","x":[1,2]}`,
			maxLen: 8,
		},
		{
			name:   "brackets inside string values",
			input:  `{"note":"array [1,2] and object {x}"}`,
			maxLen: 12,
		},
		{
			name:   "empty input",
			input:  "",
			maxLen: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := Split(tt.input, tt.maxLen)
			if strings.Join(segments, "") != tt.input {
				t.Errorf("Split() segments do not concatenate back to input:\ngot  %q\nwant %q",
					strings.Join(segments, ""), tt.input)
			}
			for i, seg := range segments {
				if seg == "" {
					t.Errorf("Split() produced empty segment at index %d", i)
				}
			}
		})
	}
}

func TestSplit_SingleSegmentWhenUnderLimit(t *testing.T) {
	input := `{"title":"Hello"}`
	segments := Split(input, DefaultMaxLen)
	if len(segments) != 1 {
		t.Fatalf("Split() returned %d segments, want 1", len(segments))
	}
	if segments[0] != input {
		t.Errorf("Split() segment = %q, want %q", segments[0], input)
	}
}

func TestSplit_NeverCutsInsideValueOrNesting(t *testing.T) {
	// Three top-level fragments; a tiny maxLen must still only cut between them.
	a := `{"long":"` + strings.Repeat("x", 50) + `"}`
	b := `{"nested":{"deep":[1,2,3]}}`
	c := `{"tail":"end"}`
	input := a + b + c

	segments := Split(input, 4)
	if len(segments) != 3 {
		t.Fatalf("Split() returned %d segments, want 3 (one per top-level fragment)", len(segments))
	}
	for i, want := range []string{a, b, c} {
		if segments[i] != want {
			t.Errorf("segment[%d] = %q, want %q", i, segments[i], want)
		}
	}
}

func TestSplit_DefaultMaxLen(t *testing.T) {
	segments := Split(`{"a":1}`, 0)
	if len(segments) != 1 {
		t.Errorf("Split with maxLen 0 should use the default, got %d segments", len(segments))
	}
}

// TestSplit_BoundarySafetyProperty generates random concatenations of nested
// JSON fragments (with braces, brackets and escaped quotes inside strings) and
// checks that every boundary falls at depth zero outside any string literal.
func TestSplit_BoundarySafetyProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		var sb strings.Builder
		fragments := 2 + rng.Intn(6)
		for f := 0; f < fragments; f++ {
			sb.WriteString(randomFragment(rng, 3))
		}
		input := sb.String()
		maxLen := 1 + rng.Intn(40)

		segments := Split(input, maxLen)
		if strings.Join(segments, "") != input {
			t.Fatalf("round %d: segments do not reproduce input", round)
		}

		offset := 0
		for i, seg := range segments[:maxInt(len(segments)-1, 0)] {
			offset += len(seg)
			depth, inString := scanState(input[:offset])
			if depth != 0 || inString {
				t.Fatalf("round %d: boundary after segment %d at offset %d has depth=%d inString=%v",
					round, i, offset, depth, inString)
			}
		}
	}
}

func randomFragment(rng *rand.Rand, maxDepth int) string {
	if maxDepth == 0 || rng.Intn(3) == 0 {
		values := []string{
			`"plain"`,
			`"quote \" inside"`,
			`"brackets [{]} inside"`,
			`"backslash \\ then text"`,
			`42`,
			`true`,
			`null`,
		}
		return values[rng.Intn(len(values))]
	}
	if rng.Intn(2) == 0 {
		n := 1 + rng.Intn(3)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = `"k` + string(rune('a'+i)) + `":` + randomFragment(rng, maxDepth-1)
		}
		return "{" + strings.Join(parts, ",") + "}"
	}
	n := 1 + rng.Intn(3)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = randomFragment(rng, maxDepth-1)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// scanState replays the chunker's scanner over a prefix and reports the
// bracket depth and in-string flag at its end.
func scanState(prefix string) (int, bool) {
	depth := 0
	inString := false
	for i := 0; i < len(prefix); i++ {
		switch prefix[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				depth++
			}
		case '}', ']':
			if !inString {
				depth--
			}
		}
	}
	return depth, inString
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
