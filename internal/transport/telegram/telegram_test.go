package telegram

import (
	"strings"
	"testing"

	logx "minderbot/pkg/logx"
)

func TestSplitTextShortPassthrough(t *testing.T) {
	t.Parallel()
	got := splitText("hello", 100)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %v, want [hello]", got)
	}
}

func TestSplitTextPrefersNewlineBoundary(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("a", 50) + "\n" + strings.Repeat("b", 50)
	got := splitText(text, 60)
	if len(got) != 2 {
		t.Fatalf("splitText produced %d chunks, want 2: %v", len(got), got)
	}
	if !strings.HasSuffix(got[0], "a") || strings.Contains(got[0], "b") {
		t.Fatalf("first chunk crossed the newline: %q", got[0])
	}
	if strings.Contains(got[1], "a") {
		t.Fatalf("second chunk contains leading text: %q", got[1])
	}
}

func TestSplitTextHardCutWithoutNewline(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("x", 250)
	got := splitText(text, 100)
	if len(got) != 3 {
		t.Fatalf("splitText produced %d chunks, want 3", len(got))
	}
	total := 0
	for _, c := range got {
		if n := len([]rune(c)); n > 100 {
			t.Fatalf("chunk length %d exceeds limit", n)
		}
		total += len([]rune(c))
	}
	if total != 250 {
		t.Fatalf("chunks lost content: %d runes total, want 250", total)
	}
}

func TestSplitTextMultibyteSafe(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("📅", 150)
	for _, c := range splitText(text, 100) {
		if !strings.HasPrefix(c, "📅") {
			t.Fatalf("chunk broke a rune: %q", c[:8])
		}
		if n := len([]rune(c)); n > 100 {
			t.Fatalf("chunk length %d exceeds limit", n)
		}
	}
}

func TestSplitTextDropsNewlineOnlyChunks(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("\n", 12) + "hello"
	got := splitText(text, 10)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("splitText = %v, want [hello]", got)
	}
	for _, c := range splitText(strings.Repeat("\n", 15), 10) {
		if c == "" {
			t.Fatal("produced an empty chunk")
		}
	}
}

func TestNewRequiresToken(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{Token: "  "}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty token")
	}
}
