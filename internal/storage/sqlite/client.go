package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/aqualens/backend/internal/storage/models"
	"github.com/aqualens/backend/pkg/logger"
)

const dateLayout = "2006-01-02"

type Client struct {
	db *sql.DB
}

// RecordFilter narrows environmental_data queries. Zero values mean
// "unconstrained". Locations are candidate site keys ORed together; each
// candidate matches by equality or substring containment, because the same
// physical site may be stored under several composite keys.
type RecordFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Locations []string
	DataType  string
}

type Aggregate struct {
	Count int      `json:"count"`
	Min   *float64 `json:"min"`
	Max   *float64 `json:"max"`
	Avg   *float64 `json:"avg"`
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS environmental_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		location TEXT NOT NULL,
		latitude REAL,
		longitude REAL,
		date TEXT NOT NULL,
		datetime INTEGER,
		data_type TEXT NOT NULL,
		value REAL,
		value2 REAL,
		value3 REAL,
		unit TEXT,
		quality_flag TEXT,
		notes TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(location, date, data_type)
	);
	CREATE INDEX IF NOT EXISTS idx_env_location ON environmental_data(location);
	CREATE INDEX IF NOT EXISTS idx_env_date ON environmental_data(date);
	CREATE INDEX IF NOT EXISTS idx_env_type ON environmental_data(data_type);
	CREATE INDEX IF NOT EXISTS idx_env_location_date_type ON environmental_data(location, date, data_type);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		source TEXT,
		doc_type TEXT,
		chunk_count INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(doc_type);

	CREATE TABLE IF NOT EXISTS chat_history (
		id TEXT PRIMARY KEY,
		session_id TEXT,
		message TEXT NOT NULL,
		answer TEXT,
		documents_count INTEGER,
		data_results_count INTEGER,
		prediction_run INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_session ON chat_history(session_id);
	CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_history(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertRecord inserts one measurement. A row that collides on the
// (location, date, data_type) dedup key is ignored, not overwritten.
func (c *Client) InsertRecord(rec *models.EnvironmentalRecord) error {
	query := `
		INSERT INTO environmental_data
			(location, latitude, longitude, date, datetime, data_type,
			 value, value2, value3, unit, quality_flag, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, date, data_type) DO NOTHING
	`

	var dt *int64
	if rec.Datetime != nil {
		unix := rec.Datetime.Unix()
		dt = &unix
	}

	now := time.Now().Unix()
	_, err := c.db.Exec(
		query,
		rec.Location,
		rec.Latitude,
		rec.Longitude,
		rec.Date.Format(dateLayout),
		dt,
		rec.DataType,
		rec.Value,
		rec.Value2,
		rec.Value3,
		rec.Unit,
		rec.QualityFlag,
		rec.Notes,
		now,
		now,
	)

	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// InsertRecords bulk-loads measurements in one transaction.
func (c *Client) InsertRecords(recs []*models.EnvironmentalRecord) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO environmental_data
			(location, latitude, longitude, date, datetime, data_type,
			 value, value2, value3, unit, quality_flag, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location, date, data_type) DO NOTHING
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, rec := range recs {
		var dt *int64
		if rec.Datetime != nil {
			unix := rec.Datetime.Unix()
			dt = &unix
		}

		_, err = stmt.Exec(
			rec.Location, rec.Latitude, rec.Longitude,
			rec.Date.Format(dateLayout), dt, rec.DataType,
			rec.Value, rec.Value2, rec.Value3,
			rec.Unit, rec.QualityFlag, rec.Notes, now, now,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Debug("Records inserted", zap.Int("count", len(recs)))
	return nil
}

func buildRecordWhere(f RecordFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if f.StartDate != nil {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.StartDate.Format(dateLayout))
	}
	if f.EndDate != nil {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.EndDate.Format(dateLayout))
	}
	if len(f.Locations) > 0 {
		var locClauses []string
		for _, loc := range f.Locations {
			locClauses = append(locClauses, "(location = ? OR location LIKE '%' || ? || '%')")
			args = append(args, loc, loc)
		}
		clauses = append(clauses, "("+strings.Join(locClauses, " OR ")+")")
	}
	if f.DataType != "" {
		clauses = append(clauses, "data_type = ?")
		args = append(args, f.DataType)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// QueryRecords returns matching measurements, most recent first, capped at limit.
func (c *Client) QueryRecords(f RecordFilter, limit int) ([]models.EnvironmentalRecord, error) {
	where, args := buildRecordWhere(f)
	query := `
		SELECT id, location, latitude, longitude, date, datetime, data_type,
		       value, value2, value3, unit, quality_flag, notes
		FROM environmental_data` + where + `
		ORDER BY date DESC, datetime DESC
		LIMIT ?
	`
	args = append(args, limit)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.EnvironmentalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (*models.EnvironmentalRecord, error) {
	var rec models.EnvironmentalRecord
	var dateStr string
	var dt sql.NullInt64
	var unit, qualityFlag, notes sql.NullString

	err := rows.Scan(
		&rec.ID, &rec.Location, &rec.Latitude, &rec.Longitude,
		&dateStr, &dt, &rec.DataType,
		&rec.Value, &rec.Value2, &rec.Value3,
		&unit, &qualityFlag, &notes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	rec.Date, err = time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse date %q: %w", dateStr, err)
	}
	if dt.Valid {
		t := time.Unix(dt.Int64, 0)
		rec.Datetime = &t
	}
	rec.Unit = unit.String
	rec.QualityFlag = qualityFlag.String
	rec.Notes = notes.String

	return &rec, nil
}

// CountRecords returns the total match count, unbounded by any sample cap.
func (c *Client) CountRecords(f RecordFilter) (int, error) {
	where, args := buildRecordWhere(f)

	var count int
	err := c.db.QueryRow("SELECT COUNT(*) FROM environmental_data"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}

	return count, nil
}

// AggregateOverall computes count/min/max/avg across all matched rows
// regardless of data_type. Min/max/avg consider only non-null values.
func (c *Client) AggregateOverall(f RecordFilter) (Aggregate, error) {
	where, args := buildRecordWhere(f)
	query := "SELECT COUNT(*), MIN(value), MAX(value), AVG(value) FROM environmental_data" + where

	var agg Aggregate
	err := c.db.QueryRow(query, args...).Scan(&agg.Count, &agg.Min, &agg.Max, &agg.Avg)
	if err != nil {
		return Aggregate{}, fmt.Errorf("failed to aggregate records: %w", err)
	}

	return agg, nil
}

// AggregateByType computes the same aggregates grouped per data_type.
func (c *Client) AggregateByType(f RecordFilter) (map[string]Aggregate, error) {
	where, args := buildRecordWhere(f)
	query := `
		SELECT data_type, COUNT(*), MIN(value), MAX(value), AVG(value)
		FROM environmental_data` + where + `
		GROUP BY data_type
	`

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate by type: %w", err)
	}
	defer rows.Close()

	byType := make(map[string]Aggregate)
	for rows.Next() {
		var dataType string
		var agg Aggregate
		if err := rows.Scan(&dataType, &agg.Count, &agg.Min, &agg.Max, &agg.Avg); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		byType[dataType] = agg
	}

	return byType, rows.Err()
}

// NearestLocation finds a known site whose stored coordinates are within tol
// degrees of (lat, lon) on both axes. Ties break toward the site with the most
// stored records. Returns "" when nothing is in range.
func (c *Client) NearestLocation(lat, lon, tol float64) (string, error) {
	query := `
		SELECT location, COUNT(*) AS cnt
		FROM environmental_data
		WHERE latitude IS NOT NULL AND longitude IS NOT NULL
		  AND ABS(latitude - ?) <= ? AND ABS(longitude - ?) <= ?
		GROUP BY location
		ORDER BY cnt DESC
		LIMIT 1
	`

	var location string
	var cnt int
	err := c.db.QueryRow(query, lat, tol, lon, tol).Scan(&location, &cnt)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up nearest location: %w", err)
	}

	return location, nil
}

// DistinctLocations lists known site keys, busiest first.
func (c *Client) DistinctLocations() ([]string, error) {
	rows, err := c.db.Query(`
		SELECT location FROM environmental_data
		GROUP BY location
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		locations = append(locations, loc)
	}

	return locations, rows.Err()
}

// RecordsInWindow returns all measurements for a site within [start, end).
// The location matches by containment so composite "site_subsite" keys hit too.
func (c *Client) RecordsInWindow(location string, start, end time.Time) ([]models.EnvironmentalRecord, error) {
	query := `
		SELECT id, location, latitude, longitude, date, datetime, data_type,
		       value, value2, value3, unit, quality_flag, notes
		FROM environmental_data
		WHERE location LIKE '%' || ? || '%'
		  AND date >= ? AND date < ?
	`

	rows, err := c.db.Query(query, location, start.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query window: %w", err)
	}
	defer rows.Close()

	var records []models.EnvironmentalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

func (c *Client) InsertChatRecord(record *models.ChatRecord) error {
	query := `
		INSERT INTO chat_history
			(id, session_id, message, answer, documents_count, data_results_count,
			 prediction_run, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	predictionRun := 0
	if record.PredictionRun {
		predictionRun = 1
	}

	_, err := c.db.Exec(
		query,
		record.ID,
		record.SessionID,
		record.Message,
		record.Answer,
		record.DocumentsCount,
		record.DataResultsCount,
		predictionRun,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}

	return nil
}

func (c *Client) GetChatHistory(sessionID string, limit int) ([]models.ChatRecord, error) {
	query := `
		SELECT id, message, answer, documents_count, data_results_count, prediction_run, created_at
		FROM chat_history
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get chat history: %w", err)
	}
	defer rows.Close()

	var records []models.ChatRecord
	for rows.Next() {
		var r models.ChatRecord
		var predictionRun int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.Message, &r.Answer, &r.DocumentsCount,
			&r.DataResultsCount, &predictionRun, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.SessionID = sessionID
		r.PredictionRun = predictionRun != 0
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) UpsertDocumentMeta(doc *models.DocumentMeta) error {
	query := `
		INSERT INTO documents (id, title, source, doc_type, chunk_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			source = excluded.source,
			doc_type = excluded.doc_type,
			chunk_count = excluded.chunk_count,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		doc.ID,
		doc.Title,
		doc.Source,
		doc.DocType,
		doc.ChunkCount,
		doc.CreatedAt.Unix(),
		doc.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	logger.Debug("Document registered", zap.String("doc_id", doc.ID), zap.String("title", doc.Title))
	return nil
}
