// Package pathmint generates destination keys for optimized artifacts.
//
// Keys have the form
//
//	optimized/<yyyy-MM-dd-HH-mm-ss-SSS>_<utc-offset>_<uuid>.<ext>
//
// The timestamp is local wall clock with millisecond precision and the
// offset is the local distance from UTC. The trailing uuid makes every
// minted key collision-free regardless of clock resolution.
package pathmint

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Prefix is the key namespace all minted paths live under.
const Prefix = "optimized/"

// Minter produces destination keys. The zero value is not usable; use New.
type Minter struct {
	// now and newUUID are swappable for tests
	now     func() time.Time
	newUUID func() uuid.UUID
}

// New returns a Minter using the local clock.
func New() *Minter {
	return &Minter{
		now:     time.Now,
		newUUID: uuid.New,
	}
}

// Mint returns a fresh destination key with the given extension.
// The extension is appended verbatim, without a leading dot.
func (m *Minter) Mint(ext string) string {
	t := m.now()
	return fmt.Sprintf("%s%s_%s_%s.%s", Prefix, formatTimestamp(t), formatOffset(t), m.newUUID(), ext)
}

// formatTimestamp renders t as yyyy-MM-dd-HH-mm-ss-SSS.
func formatTimestamp(t time.Time) string {
	return fmt.Sprintf("%s-%03d", t.Format("2006-01-02-15-04-05"), t.Nanosecond()/int(time.Millisecond))
}

// formatOffset renders the UTC offset of t in hours-minutes form,
// omitting the minutes when the offset is a whole number of hours:
// "+2" for UTC+2, "-7" for UTC-7, "+5:30" for UTC+5:30, "+0" for UTC.
func formatOffset(t time.Time) string {
	_, secs := t.Zone()

	sign := "+"
	if secs < 0 {
		sign = "-"
		secs = -secs
	}

	hours := secs / 3600
	mins := (secs % 3600) / 60

	if mins == 0 {
		return fmt.Sprintf("%s%d", sign, hours)
	}
	return fmt.Sprintf("%s%d:%02d", sign, hours, mins)
}
