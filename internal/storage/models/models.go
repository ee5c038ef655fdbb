package models

import "time"

// EnvironmentalRecord is one measurement row. (Location, Date, DataType) is the
// natural dedup key; loaders must not create duplicates for the same triple.
type EnvironmentalRecord struct {
	ID          int64
	Location    string
	Latitude    *float64
	Longitude   *float64
	Date        time.Time
	Datetime    *time.Time
	DataType    string
	Value       *float64
	Value2      *float64
	Value3      *float64
	Unit        string
	QualityFlag string
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocumentMeta is the registry entry for an indexed document. The chunk text and
// embeddings live in the vector store; this row is the source of record for
// title/source bookkeeping.
type DocumentMeta struct {
	ID         string
	Title      string
	Source     string
	DocType    string
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRecord struct {
	ID               string
	SessionID        string
	Message          string
	Answer           string
	DocumentsCount   int
	DataResultsCount int
	PredictionRun    bool
	LatencyMS        int
	CreatedAt        time.Time
}
