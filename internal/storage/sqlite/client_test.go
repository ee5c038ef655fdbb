package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aqualens/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	if err := client.InitSchema(); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}
	return client
}

func testRecord(location, date, dataType string, value float64) *models.EnvironmentalRecord {
	d, _ := time.Parse(dateLayout, date)
	return &models.EnvironmentalRecord{
		Location: location,
		Date:     d,
		DataType: dataType,
		Value:    &value,
	}
}

func TestInsertRecordDeduplicates(t *testing.T) {
	c := newTestClient(t)

	rec := testRecord("강천보", "2024-06-01", "cyanobacteria", 120)
	for i := 0; i < 3; i++ {
		if err := c.InsertRecord(rec); err != nil {
			t.Fatalf("insert %d failed: %v", i, err)
		}
	}

	count, err := c.CountRecords(RecordFilter{})
	if err != nil {
		t.Fatalf("CountRecords failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 after duplicate inserts", count)
	}
}

func TestQueryRecordsFilters(t *testing.T) {
	c := newTestClient(t)

	recs := []*models.EnvironmentalRecord{
		testRecord("강천보", "2024-06-01", "cyanobacteria", 120),
		testRecord("강천보", "2024-06-02", "chlorophyll_a", 8),
		testRecord("달성보", "2024-06-01", "cyanobacteria", 300),
		testRecord("강천보", "2023-01-01", "cyanobacteria", 50),
	}
	if err := c.InsertRecords(recs); err != nil {
		t.Fatalf("InsertRecords failed: %v", err)
	}

	start, _ := time.Parse(dateLayout, "2024-01-01")
	got, err := c.QueryRecords(RecordFilter{
		StartDate: &start,
		Locations: []string{"강천보"},
		DataType:  "cyanobacteria",
	}, 10)
	if err != nil {
		t.Fatalf("QueryRecords failed: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Location != "강천보" || *got[0].Value != 120 {
		t.Errorf("record = %+v", got[0])
	}
}

func TestQueryRecordsLocationContainment(t *testing.T) {
	c := newTestClient(t)

	if err := c.InsertRecord(testRecord("낙동강_강정고령보", "2024-06-01", "cyanobacteria", 77)); err != nil {
		t.Fatal(err)
	}

	got, err := c.QueryRecords(RecordFilter{Locations: []string{"강정고령보"}}, 10)
	if err != nil {
		t.Fatalf("QueryRecords failed: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d, want 1 via substring containment", len(got))
	}
}

func TestQueryRecordsOrderedMostRecentFirst(t *testing.T) {
	c := newTestClient(t)

	c.InsertRecord(testRecord("강천보", "2024-06-01", "cyanobacteria", 1))
	c.InsertRecord(testRecord("강천보", "2024-06-03", "cyanobacteria", 3))
	c.InsertRecord(testRecord("강천보", "2024-06-02", "cyanobacteria", 2))

	got, err := c.QueryRecords(RecordFilter{}, 10)
	if err != nil {
		t.Fatalf("QueryRecords failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if !got[0].Date.After(got[1].Date) || !got[1].Date.After(got[2].Date) {
		t.Errorf("dates not descending: %v, %v, %v", got[0].Date, got[1].Date, got[2].Date)
	}
}

func TestAggregates(t *testing.T) {
	c := newTestClient(t)

	c.InsertRecord(testRecord("강천보", "2024-06-01", "cyanobacteria", 100))
	c.InsertRecord(testRecord("강천보", "2024-06-02", "cyanobacteria", 300))
	c.InsertRecord(testRecord("강천보", "2024-06-01", "water_temperature", 20))

	overall, err := c.AggregateOverall(RecordFilter{})
	if err != nil {
		t.Fatalf("AggregateOverall failed: %v", err)
	}
	if overall.Count != 3 {
		t.Errorf("overall count = %d, want 3", overall.Count)
	}
	if overall.Min == nil || *overall.Min != 20 {
		t.Errorf("overall min = %v, want 20", overall.Min)
	}

	byType, err := c.AggregateByType(RecordFilter{})
	if err != nil {
		t.Fatalf("AggregateByType failed: %v", err)
	}
	cyano := byType["cyanobacteria"]
	if cyano.Count != 2 || cyano.Avg == nil || *cyano.Avg != 200 {
		t.Errorf("cyanobacteria aggregate = %+v", cyano)
	}
}

func TestAggregateOverallEmpty(t *testing.T) {
	c := newTestClient(t)

	agg, err := c.AggregateOverall(RecordFilter{})
	if err != nil {
		t.Fatalf("AggregateOverall failed: %v", err)
	}
	if agg.Count != 0 || agg.Min != nil || agg.Avg != nil {
		t.Errorf("aggregate = %+v, want empty", agg)
	}
}

func TestNearestLocation(t *testing.T) {
	c := newTestClient(t)

	lat1, lon1 := 35.8, 128.4
	rec := testRecord("달성보", "2024-06-01", "cyanobacteria", 10)
	rec.Latitude, rec.Longitude = &lat1, &lon1
	c.InsertRecord(rec)

	loc, err := c.NearestLocation(35.8001, 128.4001, 0.001)
	if err != nil {
		t.Fatalf("NearestLocation failed: %v", err)
	}
	if loc != "달성보" {
		t.Errorf("location = %q, want 달성보", loc)
	}

	loc, err = c.NearestLocation(37.0, 127.0, 0.001)
	if err != nil {
		t.Fatalf("NearestLocation failed: %v", err)
	}
	if loc != "" {
		t.Errorf("location = %q, want empty out of range", loc)
	}
}

func TestRecordsInWindowHalfOpen(t *testing.T) {
	c := newTestClient(t)

	c.InsertRecord(testRecord("강천보", "2024-05-27", "cyanobacteria", 1))
	c.InsertRecord(testRecord("강천보", "2024-06-02", "cyanobacteria", 2))
	c.InsertRecord(testRecord("강천보", "2024-06-03", "cyanobacteria", 3))

	start, _ := time.Parse(dateLayout, "2024-05-27")
	end, _ := time.Parse(dateLayout, "2024-06-03")

	got, err := c.RecordsInWindow("강천보", start, end)
	if err != nil {
		t.Fatalf("RecordsInWindow failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want 2 (end date excluded)", len(got))
	}
}

func TestChatHistoryRoundTrip(t *testing.T) {
	c := newTestClient(t)

	rec := &models.ChatRecord{
		ID:             "r1",
		SessionID:      "s1",
		Message:        "강천보 수질",
		Answer:         "답변",
		DocumentsCount: 2,
		PredictionRun:  true,
		CreatedAt:      time.Now(),
	}
	if err := c.InsertChatRecord(rec); err != nil {
		t.Fatalf("InsertChatRecord failed: %v", err)
	}

	got, err := c.GetChatHistory("s1", 10)
	if err != nil {
		t.Fatalf("GetChatHistory failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Message != "강천보 수질" || !got[0].PredictionRun {
		t.Errorf("record = %+v", got[0])
	}

	got, err = c.GetChatHistory("other", 10)
	if err != nil {
		t.Fatalf("GetChatHistory failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0 for other session", len(got))
	}
}

func TestUpsertDocumentMeta(t *testing.T) {
	c := newTestClient(t)

	now := time.Now()
	doc := &models.DocumentMeta{
		ID: "d1", Title: "보고서", Source: "upload", DocType: "보고서",
		ChunkCount: 3, CreatedAt: now, UpdatedAt: now,
	}
	if err := c.UpsertDocumentMeta(doc); err != nil {
		t.Fatalf("UpsertDocumentMeta failed: %v", err)
	}

	doc.ChunkCount = 5
	if err := c.UpsertDocumentMeta(doc); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
}
