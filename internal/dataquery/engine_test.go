package dataquery

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aqualens/backend/internal/extract"
	"github.com/aqualens/backend/internal/storage/models"
	"github.com/aqualens/backend/internal/storage/sqlite"
)

var engineGazetteer = []string{"강천보", "낙동강_강정고령보", "달성보"}

func newTestEngine(t *testing.T) (*Engine, *sqlite.Client) {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	return NewEngine(db, engineGazetteer), db
}

func seedRecord(t *testing.T, db *sqlite.Client, location, date, dataType string, value float64) {
	t.Helper()
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Fatal(err)
	}
	err = db.InsertRecord(&models.EnvironmentalRecord{
		Location: location,
		Date:     d,
		DataType: dataType,
		Value:    &value,
	})
	if err != nil {
		t.Fatalf("seed insert failed: %v", err)
	}
}

func TestQueryEmptyFilterReturnsCappedSample(t *testing.T) {
	engine, db := newTestEngine(t)

	for i := 0; i < SampleLimit+10; i++ {
		seedRecord(t, db, "강천보", time.Date(2024, 1, 1+i/2, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			[]string{"cyanobacteria", "chlorophyll_a"}[i%2], float64(i))
	}

	result, err := engine.Query(extract.Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if result.Metadata.TotalFound != SampleLimit+10 {
		t.Errorf("total = %d, want %d", result.Metadata.TotalFound, SampleLimit+10)
	}
	if len(result.Results) != SampleLimit {
		t.Errorf("sample = %d, want cap %d", len(result.Results), SampleLimit)
	}
	if result.Statistics.Overall.Count != SampleLimit+10 {
		t.Errorf("aggregate count = %d, want %d", result.Statistics.Overall.Count, SampleLimit+10)
	}
}

func TestQueryZeroMatchesIsNotAnError(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.Query(extract.Filter{Location: "없는지점"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if result.Metadata.TotalFound != 0 {
		t.Errorf("total = %d, want 0", result.Metadata.TotalFound)
	}
	if len(result.Results) != 0 {
		t.Errorf("results = %v, want empty", result.Results)
	}
}

func TestQueryExpandsCompositeLocationKeys(t *testing.T) {
	engine, db := newTestEngine(t)

	seedRecord(t, db, "낙동강_강정고령보", "2024-06-01", "cyanobacteria", 42)

	result, err := engine.Query(extract.Filter{Location: "강정고령보"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if result.Metadata.TotalFound != 1 {
		t.Errorf("total = %d, want 1 via composite key expansion", result.Metadata.TotalFound)
	}
	if result.Metadata.Location != "강정고령보" {
		t.Errorf("metadata location = %q, want requested name", result.Metadata.Location)
	}
}

func TestQueryDateRangeMetadata(t *testing.T) {
	engine, db := newTestEngine(t)

	seedRecord(t, db, "강천보", "2024-03-15", "cyanobacteria", 10)
	seedRecord(t, db, "강천보", "2024-05-15", "cyanobacteria", 20)

	result, err := engine.Query(extract.Filter{
		DateRange: &extract.DateRange{
			Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}

	if result.Metadata.TotalFound != 1 {
		t.Errorf("total = %d, want 1", result.Metadata.TotalFound)
	}
	if result.Metadata.DateRange == nil || result.Metadata.DateRange.Start != "2024-03-01" {
		t.Errorf("date range metadata = %+v", result.Metadata.DateRange)
	}
}

func TestAlternativeLocationsBusiestFirst(t *testing.T) {
	engine, db := newTestEngine(t)

	seedRecord(t, db, "달성보", "2024-06-01", "cyanobacteria", 1)
	seedRecord(t, db, "달성보", "2024-06-02", "cyanobacteria", 2)
	seedRecord(t, db, "강천보", "2024-06-01", "cyanobacteria", 3)

	locations := engine.AlternativeLocations(1)
	if len(locations) != 1 || locations[0] != "달성보" {
		t.Errorf("alternatives = %v, want [달성보]", locations)
	}
}
