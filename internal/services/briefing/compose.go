// Package briefing composes multi-section reports on demand.
//
// A report is assembled from an ordered list of sections, each backed by an
// independent fetch function. Section failures are isolated: a fetch that
// errors (or panics) is logged and its section omitted; the remaining
// sections still render. Compose never fails — in the worst case it returns
// header and footer only.
//
// An empty section is not a failed section: it renders with a placeholder
// line so the reader can tell "nothing today" from "source broken".
package briefing

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "minderbot/pkg/logx"
)

const (
	placeholder = "nothing to report"
	footer      = "— end of briefing —"
)

// Section is one named, independently-failing unit of a report.
type Section struct {
	Title string
	Fetch func(ctx context.Context) (string, error)
}

// Variant is one report composition: a fixed, ordered section list under a
// fixed header. The day-start and day-end briefings are two Variants sharing
// the same composition algorithm.
type Variant struct {
	Name     string
	Header   string
	Sections []Section
}

type Composer struct {
	log logx.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewComposer(log logx.Logger) *Composer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Composer{log: log, now: time.Now}
}

// Compose builds the report fresh. It visits every section in order,
// regardless of earlier failures, and never returns an error.
func (c *Composer) Compose(ctx context.Context, v Variant) string {
	var b strings.Builder
	b.WriteString(v.Header)
	b.WriteString(" — ")
	b.WriteString(c.now().Format("Mon 02 Jan"))
	b.WriteString("\n")

	for _, sec := range v.Sections {
		content, err := fetchSection(ctx, sec)
		if err != nil {
			c.log.Warn("briefing section failed",
				logx.String("variant", v.Name), logx.String("section", sec.Title), logx.Err(err))
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			content = placeholder
		}
		b.WriteString("\n")
		b.WriteString(sec.Title)
		b.WriteString("\n")
		b.WriteString(content)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footer)
	return b.String()
}

func fetchSection(ctx context.Context, sec Section) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if sec.Fetch == nil {
		return "", fmt.Errorf("section %q has no fetch", sec.Title)
	}
	return sec.Fetch(ctx)
}
