package forecast

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Intent is the outcome of scanning a message for a forecast request.
type Intent struct {
	NeedsPrediction bool
	Location        string
	WeeksAhead      int
	TargetDate      time.Time
}

// Forecasting only runs when one of these appears in the message. False
// negatives are acceptable; this is a fast gate, not an intent classifier.
var triggerKeywords = []string{
	"예측", "예상", "전망", "다음주", "다음 주", "주 뒤", "주 후",
	"forecast", "predict",
}

// Checked in order; first match wins. A trigger without a parsable count
// defaults to one week ahead.
var weekPatterns = []struct {
	re    *regexp.Regexp
	weeks func(m []string) int
}{
	{
		re:    regexp.MustCompile(`(\d+)\s*주\s*(?:뒤|후)`),
		weeks: func(m []string) int { n, _ := strconv.Atoi(m[1]); return n },
	},
	{
		re:    regexp.MustCompile(`다음\s*주`),
		weeks: func(m []string) int { return 1 },
	},
}

type IntentDetector struct {
	now       func() time.Time
	locations []string
}

// NewIntentDetector builds a detector over the curated site list (the same
// gazetteer the extractor uses), longest name first.
func NewIntentDetector(locations []string) *IntentDetector {
	sorted := make([]string, len(locations))
	copy(sorted, locations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})

	return &IntentDetector{now: time.Now, locations: sorted}
}

// WithNow overrides the clock used to compute target dates.
func (d *IntentDetector) WithNow(now func() time.Time) *IntentDetector {
	d.now = now
	return d
}

// Detect scans message text for forecast triggers. Without a trigger the
// zero intent (no prediction needed) is returned.
func (d *IntentDetector) Detect(text string) Intent {
	lower := strings.ToLower(text)

	triggered := false
	for _, kw := range triggerKeywords {
		if strings.Contains(lower, kw) {
			triggered = true
			break
		}
	}
	if !triggered {
		return Intent{}
	}

	weeksAhead := 1
	for _, p := range weekPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			weeksAhead = p.weeks(m)
			break
		}
	}

	location := ""
	for _, name := range d.locations {
		if strings.Contains(text, name) {
			location = name
			break
		}
	}

	return Intent{
		NeedsPrediction: true,
		Location:        location,
		WeeksAhead:      weeksAhead,
		TargetDate:      d.now().AddDate(0, 0, 7*weeksAhead),
	}
}
