package pipeline

import "testing"

func TestEvenDim(t *testing.T) {
	cases := map[int]int{1919: 1918, 1920: 1920, 0: 0, 1081: 1080}
	for in, want := range cases {
		if got := EvenDim(in); got != want {
			t.Errorf("EvenDim(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestWrapTextRespectsLineBudget(t *testing.T) {
	lines := wrapText("the quick brown fox jumps over the lazy dog", 12)
	if len(lines) < 2 {
		t.Fatalf("expected text to wrap across multiple lines, got %v", lines)
	}
	for _, l := range lines {
		if len(l) > 12+len("jumps") { // a single overlong word may exceed the budget alone
			t.Errorf("line %q exceeds budget", l)
		}
	}
}

func TestWrapTextPreservesExplicitNewlines(t *testing.T) {
	lines := wrapText("first\nsecond", 80)
	if len(lines) != 2 || lines[0] != "first" || lines[1] != "second" {
		t.Fatalf("expected two lines preserving the newline split, got %v", lines)
	}
}

func TestWrapTextHandlesEmptyInput(t *testing.T) {
	lines := wrapText("", 10)
	if len(lines) != 1 || lines[0] != "" {
		t.Fatalf("expected a single empty line, got %v", lines)
	}
}

func TestPipPosition(t *testing.T) {
	cases := map[string]string{
		"top-left":     "10:10",
		"top-right":    "main_w-overlay_w-10:10",
		"bottom-left":  "10:main_h-overlay_h-10",
		"bottom-right": "main_w-overlay_w-10:main_h-overlay_h-10",
		"":             "main_w-overlay_w-10:10",
	}
	for corner, want := range cases {
		if got := pipPosition(corner, 10); got != want {
			t.Errorf("pipPosition(%q) = %q, want %q", corner, got, want)
		}
	}
}
