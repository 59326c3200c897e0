package briefing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	logx "minderbot/pkg/logx"
)

func newTestComposer() *Composer {
	c := NewComposer(logx.Nop())
	c.now = func() time.Time { return time.Date(2026, 3, 10, 7, 30, 0, 0, time.UTC) }
	return c
}

func staticSection(title, content string) Section {
	return Section{Title: title, Fetch: func(context.Context) (string, error) { return content, nil }}
}

func failingSection(title string) Section {
	return Section{Title: title, Fetch: func(context.Context) (string, error) { return "", errors.New("source broken") }}
}

func TestComposeOrderAndFraming(t *testing.T) {
	t.Parallel()
	c := newTestComposer()
	out := c.Compose(context.Background(), Variant{
		Name:   "day-start",
		Header: "🌅 Morning briefing",
		Sections: []Section{
			staticSection("first", "alpha"),
			staticSection("second", "beta"),
			staticSection("third", "gamma"),
		},
	})

	if !strings.HasPrefix(out, "🌅 Morning briefing — Tue 10 Mar") {
		t.Fatalf("header missing or wrong: %q", out)
	}
	if !strings.HasSuffix(out, footer) {
		t.Fatalf("footer missing: %q", out)
	}
	order := []string{"first", "alpha", "second", "beta", "third", "gamma"}
	pos := 0
	for _, frag := range order {
		idx := strings.Index(out[pos:], frag)
		if idx < 0 {
			t.Fatalf("fragment %q missing or out of order in %q", frag, out)
		}
		pos += idx + len(frag)
	}
}

func TestComposeFailedSectionsOmitted(t *testing.T) {
	t.Parallel()
	c := newTestComposer()
	out := c.Compose(context.Background(), Variant{
		Name:   "day-start",
		Header: "h",
		Sections: []Section{
			staticSection("one", "a"),
			failingSection("two"),
			staticSection("three", "c"),
			failingSection("four"),
			staticSection("five", "e"),
		},
	})

	for _, want := range []string{"one", "three", "five"} {
		if !strings.Contains(out, want) {
			t.Fatalf("surviving section %q missing from %q", want, out)
		}
	}
	for _, gone := range []string{"two", "four"} {
		if strings.Contains(out, gone) {
			t.Fatalf("failed section %q rendered in %q", gone, out)
		}
	}
	if strings.Index(out, "one") > strings.Index(out, "three") || strings.Index(out, "three") > strings.Index(out, "five") {
		t.Fatalf("section order not preserved: %q", out)
	}
}

func TestComposeEmptySectionGetsPlaceholder(t *testing.T) {
	t.Parallel()
	c := newTestComposer()
	out := c.Compose(context.Background(), Variant{
		Name:     "day-end",
		Header:   "h",
		Sections: []Section{staticSection("agenda", "   ")},
	})
	if !strings.Contains(out, "agenda\n"+placeholder) {
		t.Fatalf("placeholder missing for empty section: %q", out)
	}
}

func TestComposePanickingSectionIsIsolated(t *testing.T) {
	t.Parallel()
	c := newTestComposer()
	out := c.Compose(context.Background(), Variant{
		Name:   "day-start",
		Header: "h",
		Sections: []Section{
			{Title: "boom", Fetch: func(context.Context) (string, error) { panic("kaput") }},
			staticSection("ok", "still here"),
		},
	})
	if strings.Contains(out, "boom") {
		t.Fatalf("panicking section rendered: %q", out)
	}
	if !strings.Contains(out, "still here") {
		t.Fatalf("healthy section missing after neighbor panic: %q", out)
	}
}

func TestComposeAllSectionsFailed(t *testing.T) {
	t.Parallel()
	c := newTestComposer()
	out := c.Compose(context.Background(), Variant{
		Name:     "day-start",
		Header:   "h",
		Sections: []Section{failingSection("a"), {Title: "b"}},
	})
	// Worst case is still a well-formed (if empty) report.
	if !strings.Contains(out, "h — ") || !strings.Contains(out, footer) {
		t.Fatalf("degenerate report malformed: %q", out)
	}
}
