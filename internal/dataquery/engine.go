// Package dataquery turns extracted filters into bounded measurement queries
// with aggregate statistics.
package dataquery

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aqualens/backend/internal/extract"
	"github.com/aqualens/backend/internal/storage/models"
	"github.com/aqualens/backend/internal/storage/sqlite"
	"github.com/aqualens/backend/pkg/logger"
)

// SampleLimit caps the rows returned per query. TotalFound is not bounded by it.
const SampleLimit = 20

type Engine struct {
	db        *sqlite.Client
	gazetteer []string
}

type Statistics struct {
	Overall sqlite.Aggregate            `json:"overall"`
	ByType  map[string]sqlite.Aggregate `json:"by_type"`
}

type DateRangeMeta struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Metadata reports which filters were actually applied so callers can tell
// "no data for this filter" apart from "nothing was filtered".
type Metadata struct {
	DateRange          *DateRangeMeta `json:"date_range,omitempty"`
	Location           string         `json:"location,omitempty"`
	DataType           string         `json:"data_type,omitempty"`
	TotalFound         int            `json:"total_found"`
	CoordinateResolved bool           `json:"coordinate_resolved,omitempty"`
}

type Result struct {
	Results    []models.EnvironmentalRecord `json:"results"`
	Statistics Statistics                   `json:"statistics"`
	Metadata   Metadata                     `json:"metadata"`
}

func NewEngine(db *sqlite.Client, gazetteer []string) *Engine {
	return &Engine{db: db, gazetteer: gazetteer}
}

// Query runs the filtered lookup. Zero matches is a normal result with
// TotalFound 0, never an error.
func (e *Engine) Query(f extract.Filter) (*Result, error) {
	rf := sqlite.RecordFilter{DataType: f.DataType}
	if f.DateRange != nil {
		start, end := f.DateRange.Start, f.DateRange.End
		rf.StartDate = &start
		rf.EndDate = &end
	}
	if f.Location != "" {
		rf.Locations = e.locationCandidates(f.Location)
	}

	total, err := e.db.CountRecords(rf)
	if err != nil {
		return nil, err
	}

	records, err := e.db.QueryRecords(rf, SampleLimit)
	if err != nil {
		return nil, err
	}

	overall, err := e.db.AggregateOverall(rf)
	if err != nil {
		return nil, err
	}

	byType, err := e.db.AggregateByType(rf)
	if err != nil {
		return nil, err
	}

	meta := Metadata{
		Location:           f.Location,
		DataType:           f.DataType,
		TotalFound:         total,
		CoordinateResolved: f.CoordinateResolved,
	}
	if f.DateRange != nil {
		meta.DateRange = &DateRangeMeta{
			Start: f.DateRange.Start.Format(time.DateOnly),
			End:   f.DateRange.End.Format(time.DateOnly),
		}
	}

	logger.Debug("Data query completed",
		zap.String("location", f.Location),
		zap.String("data_type", f.DataType),
		zap.Int("total_found", total),
		zap.Int("samples", len(records)),
	)

	return &Result{
		Results:    records,
		Statistics: Statistics{Overall: overall, ByType: byType},
		Metadata:   meta,
	}, nil
}

// locationCandidates expands a resolved location to every gazetteer entry that
// shares a substring relationship with it. The same physical site may be stored
// under several composite keys, so recall is favored over precision here.
func (e *Engine) locationCandidates(location string) []string {
	candidates := []string{location}
	seen := map[string]bool{location: true}

	for _, name := range e.gazetteer {
		if seen[name] {
			continue
		}
		if strings.Contains(name, location) || strings.Contains(location, name) {
			candidates = append(candidates, name)
			seen[name] = true
		}
	}

	return candidates
}

// AlternativeLocations suggests known sites to offer when a location filter
// found nothing, busiest sites first.
func (e *Engine) AlternativeLocations(limit int) []string {
	locations, err := e.db.DistinctLocations()
	if err != nil {
		logger.Warn("Failed to list alternative locations", zap.Error(err))
		return nil
	}
	if len(locations) > limit {
		locations = locations[:limit]
	}
	return locations
}
