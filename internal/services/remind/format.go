package remind

import (
	"strings"
	"time"

	"minderbot/internal/storage"
)

// FormatCandidate renders one reminder line for the outbound chat.
func FormatCandidate(c storage.Candidate, now time.Time) string {
	var b strings.Builder
	b.WriteString(domainPrefix(c.Domain))
	b.WriteString(" ")
	b.WriteString(c.Title)
	b.WriteString("\n")
	b.WriteString(humanDue(c.DueAt, now))
	if strings.TrimSpace(c.Body) != "" {
		b.WriteString("\n")
		b.WriteString(c.Body)
	}
	return b.String()
}

func domainPrefix(d storage.Domain) string {
	switch d {
	case storage.DomainCalendar:
		return "📅"
	case storage.DomainTask:
		return "📝"
	case storage.DomainPrice:
		return "📈"
	case storage.DomainDocument:
		return "🛂"
	default:
		return "🔔"
	}
}

func humanDue(due, now time.Time) string {
	switch {
	case due.Before(now.Add(-time.Minute)):
		return "was due " + due.Format("Mon 02 Jan 15:04")
	case due.Year() == now.Year() && due.YearDay() == now.YearDay():
		return "due today " + due.Format("15:04")
	default:
		return "due " + due.Format("Mon 02 Jan 15:04")
	}
}
