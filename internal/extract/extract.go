// Package extract turns free-text questions into structured query filters:
// a date range, a location key, and a canonical data-type tag. Parsing is
// rule-based on purpose; each concern is an ordered pattern table where the
// first match wins.
package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aqualens/backend/pkg/logger"
)

// Coordinate bounding box for the monitored region. Numbers outside it are
// treated as noise, not coordinates.
const (
	minLatitude  = 30.0
	maxLatitude  = 45.0
	minLongitude = 120.0
	maxLongitude = 135.0
)

// DefaultCoordinateTolerance is the absolute per-axis tolerance used when
// resolving parsed coordinates against known sites.
const DefaultCoordinateTolerance = 0.001

// DateRange is an inclusive calendar-date interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Filter is the per-request query constraint derived from message text.
// Empty fields mean "unconstrained", never an error.
type Filter struct {
	DateRange          *DateRange
	Location           string
	DataType           string
	CoordinateResolved bool
}

// LocationResolver looks up the known site nearest to a coordinate pair.
type LocationResolver interface {
	NearestLocation(lat, lon, tol float64) (string, error)
}

type typeKeyword struct {
	keyword string
	tag     string
}

type datePattern struct {
	re      *regexp.Regexp
	handler func(e *Extractor, m []string) *DateRange
}

type Extractor struct {
	now          func() time.Time
	gazetteer    []string
	typeKeywords []typeKeyword
	locations    LocationResolver
	tolerance    float64
}

// Checked in order; the first matching pattern short-circuits.
var datePatterns = []datePattern{
	{
		re: regexp.MustCompile(`(\d{4})년\s*(\d{1,2})월`),
		handler: func(e *Extractor, m []string) *DateRange {
			year, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			if month < 1 || month > 12 {
				return nil
			}
			start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
			end := start.AddDate(0, 1, -1)
			return &DateRange{Start: start, End: end}
		},
	},
	{
		re: regexp.MustCompile(`과거\s*(\d+)\s*년`),
		handler: func(e *Extractor, m []string) *DateRange {
			years, _ := strconv.Atoi(m[1])
			end := truncateToDay(e.now())
			start := end.AddDate(-years, 0, 0)
			return &DateRange{Start: start, End: end}
		},
	},
	{
		re: regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`),
		handler: func(e *Extractor, m []string) *DateRange {
			year, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			day, _ := strconv.Atoi(m[3])
			if month < 1 || month > 12 || day < 1 || day > 31 {
				return nil
			}
			d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
			return &DateRange{Start: d, End: d}
		},
	},
}

var coordPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\(\s*(\d{1,3}(?:\.\d+)?)\s*,\s*(\d{1,3}(?:\.\d+)?)\s*\)`),
	regexp.MustCompile(`위도\s*[:：]?\s*(\d{1,3}(?:\.\d+)?)[\s,]*경도\s*[:：]?\s*(\d{1,3}(?:\.\d+)?)`),
}

// Generic site-name endings used as a last resort when the gazetteer has no hit.
var locationSuffixPattern = regexp.MustCompile(`[가-힣A-Za-z0-9]+(?:보|댐|저수지|호수|강|하천|지구|리)`)

// Curated synonym-to-canonical-tag table, checked after the feature names
// themselves. First matching keyword wins.
var curatedTypeKeywords = []typeKeyword{
	{"남조류", "cyanobacteria"},
	{"녹조", "cyanobacteria"},
	{"유해조류", "cyanobacteria"},
	{"클로로필", "chlorophyll_a"},
	{"엽록소", "chlorophyll_a"},
	{"chlorophyll", "chlorophyll_a"},
	{"총질소", "total_nitrogen"},
	{"total nitrogen", "total_nitrogen"},
	{"총인", "total_phosphorus"},
	{"total phosphorus", "total_phosphorus"},
	{"수온", "water_temperature"},
	{"온도", "water_temperature"},
	{"용존산소", "dissolved_oxygen"},
	{"수질", "chlorophyll_a"},
}

// NewExtractor builds an extractor over a gazetteer of known site names and the
// model's canonical feature list. resolver may be nil; coordinate lookup is then
// skipped.
func NewExtractor(gazetteer, features []string, resolver LocationResolver) *Extractor {
	sorted := make([]string, len(gazetteer))
	copy(sorted, gazetteer)
	// Longest name first so "site_subsite" beats a bare "site" substring.
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i]) > len(sorted[j])
	})

	keywords := make([]typeKeyword, 0, len(features)+len(curatedTypeKeywords))
	for _, f := range features {
		keywords = append(keywords, typeKeyword{keyword: strings.ToLower(f), tag: f})
		if spaced := strings.ReplaceAll(f, "_", " "); spaced != f {
			keywords = append(keywords, typeKeyword{keyword: strings.ToLower(spaced), tag: f})
		}
	}
	keywords = append(keywords, curatedTypeKeywords...)

	return &Extractor{
		now:          time.Now,
		gazetteer:    sorted,
		typeKeywords: keywords,
		locations:    resolver,
		tolerance:    DefaultCoordinateTolerance,
	}
}

// WithNow overrides the clock. Relative date patterns anchor to it.
func (e *Extractor) WithNow(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// Extract parses question text into a filter. Every field is independently
// optional; a miss yields the zero value, not an error.
func (e *Extractor) Extract(text string) Filter {
	f := Filter{
		DateRange: e.extractDateRange(text),
		DataType:  e.extractDataType(text),
	}
	f.Location, f.CoordinateResolved = e.extractLocation(text)

	logger.Debug("Filter extracted",
		zap.String("location", f.Location),
		zap.String("data_type", f.DataType),
		zap.Bool("coordinate_resolved", f.CoordinateResolved),
		zap.Bool("has_date_range", f.DateRange != nil),
	)

	return f
}

func (e *Extractor) extractDateRange(text string) *DateRange {
	for _, p := range datePatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			if r := p.handler(e, m); r != nil {
				return r
			}
		}
	}
	return nil
}

// ParseCoordinates recognizes "(lat, lon)" and "위도: .. 경도: .." forms.
// Pairs outside the regional bounding box are rejected so unrelated numbers in
// the text do not parse as coordinates.
func ParseCoordinates(text string) (lat, lon float64, ok bool) {
	for _, re := range coordPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		parsedLat, err1 := strconv.ParseFloat(m[1], 64)
		parsedLon, err2 := strconv.ParseFloat(m[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		if parsedLat < minLatitude || parsedLat > maxLatitude ||
			parsedLon < minLongitude || parsedLon > maxLongitude {
			continue
		}
		return parsedLat, parsedLon, true
	}
	return 0, 0, false
}

func (e *Extractor) extractLocation(text string) (string, bool) {
	// 1. Coordinates resolved against stored site positions.
	if e.locations != nil {
		if lat, lon, ok := ParseCoordinates(text); ok {
			loc, err := e.locations.NearestLocation(lat, lon, e.tolerance)
			if err != nil {
				logger.Warn("Coordinate lookup failed", zap.Error(err))
			} else if loc != "" {
				return loc, true
			}
		}
	}

	// 2. Gazetteer, longest name first.
	for _, name := range e.gazetteer {
		if strings.Contains(text, name) {
			return name, false
		}
	}

	// 3. Generic suffix match, cross-checked against the gazetteer for the best
	// containing entry.
	if m := locationSuffixPattern.FindString(text); m != "" {
		if best := e.bestGazetteerMatch(m); best != "" {
			return best, false
		}
		return m, false
	}

	return "", false
}

func (e *Extractor) bestGazetteerMatch(fragment string) string {
	best := ""
	for _, name := range e.gazetteer {
		if strings.Contains(name, fragment) || strings.Contains(fragment, name) {
			if len(name) > len(best) {
				best = name
			}
		}
	}
	return best
}

func (e *Extractor) extractDataType(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range e.typeKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.tag
		}
	}
	return ""
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
