package usage

import (
	"fmt"
	"strings"
	"time"
)

// Period is a calendar month used as the usage accounting window.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// PeriodResolver maps instants to usage periods in a fixed location.
type PeriodResolver struct {
	Location *time.Location
	Now      func() time.Time
}

// NewPeriodResolver loads tz ("Local" or empty means the process zone).
func NewPeriodResolver(tz string) (*PeriodResolver, error) {
	loc := time.Local
	if name := strings.TrimSpace(tz); name != "" && !strings.EqualFold(name, "local") {
		l, err := time.LoadLocation(name)
		if err != nil {
			return nil, fmt.Errorf("load usage timezone %q: %w", name, err)
		}
		loc = l
	}
	return &PeriodResolver{Location: loc, Now: time.Now}, nil
}

// Resolve returns the period containing the current instant.
func (r *PeriodResolver) Resolve() Period {
	now := time.Now
	if r != nil && r.Now != nil {
		now = r.Now
	}
	return r.At(now())
}

// At returns the period containing t.
func (r *PeriodResolver) At(t time.Time) Period {
	loc := time.Local
	if r != nil && r.Location != nil {
		loc = r.Location
	}
	local := t.In(loc)
	return Period{Month: int(local.Month()), Year: local.Year()}
}
