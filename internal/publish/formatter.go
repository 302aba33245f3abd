package publish

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/quakewatch/quakewatch/internal/models"
)

// defaultConclusions are the rotating tag lines appended to alerts.
var defaultConclusions = []string{
	"Stay safe out there!",
	"Drop, cover, and hold on.",
	"Check on your neighbors.",
	"Know your evacuation route.",
	"Keep an emergency kit ready.",
}

// Formatter renders alert and summary text. pageURLTemplate expects one
// %s placeholder for the event id.
type Formatter struct {
	pageURLTemplate string
	conclusions     []string
}

// NewFormatter creates a formatter with the default conclusion rotation.
func NewFormatter(pageURLTemplate string) *Formatter {
	return &Formatter{
		pageURLTemplate: pageURLTemplate,
		conclusions:     defaultConclusions,
	}
}

// FormatEvent renders the primary alert text for one event.
func (f *Formatter) FormatEvent(ev models.Event, now time.Time) string {
	minutes := int(now.Sub(ev.EventTime).Minutes())
	if minutes < 0 {
		minutes = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recent #Earthquake: %s reported at %s UTC (%d minutes ago).",
		ev.Title, ev.EventTime.Format("2006-01-02 15:04:05"), minutes)

	if ev.Felt != nil && *ev.Felt > 0 {
		fmt.Fprintf(&b, " %d people reported feeling it.", *ev.Felt)
	}
	if ev.Tsunami {
		b.WriteString(" A tsunami advisory may be in effect for nearby coasts.")
	}

	b.WriteString(" #EarthquakeAlert.")
	fmt.Fprintf(&b, "\nSee more details at %s.", fmt.Sprintf(f.pageURLTemplate, ev.ID))
	fmt.Fprintf(&b, "\n%s", f.conclusion())

	return b.String()
}

// FormatSummary renders the daily/weekly/monthly summary text.
func (f *Formatter) FormatSummary(period string, s models.PeriodSummary) string {
	lead := fmt.Sprintf("During the past %s", period)
	if period == "day" {
		lead = "Yesterday"
	}
	return fmt.Sprintf("%s, there were %d #earthquakes globally, with %d of them registering a magnitude of 5.0 or higher. %s",
		lead, s.Total, s.AboveFive, f.conclusion())
}

// ContextPrompt builds the text-generator prompt for a threaded context
// reply from regional historical statistics.
func (f *Formatter) ContextPrompt(ev models.Event, activity models.RegionalActivity, lookbackYears int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a short, factual follow-up post (under 250 characters) for an earthquake alert. ")
	fmt.Fprintf(&b, "A magnitude %.1f earthquake just occurred: %s. ", ev.Mag(), ev.Place)
	fmt.Fprintf(&b, "In the past %d years, %d earthquakes of comparable magnitude occurred within the surrounding region.",
		lookbackYears, activity.Count)
	if activity.LastEventTime != nil {
		fmt.Fprintf(&b, " The most recent was on %s", activity.LastEventTime.Format("January 2, 2006"))
		if activity.LastEventMag != nil {
			fmt.Fprintf(&b, " (magnitude %.1f)", *activity.LastEventMag)
		}
		b.WriteString(".")
	}
	b.WriteString(" Do not invent numbers beyond these.")
	return b.String()
}

func (f *Formatter) conclusion() string {
	return f.conclusions[rand.Intn(len(f.conclusions))]
}
