package milvus

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

func TestIndexConfiguration(t *testing.T) {
	idx, err := entity.NewIndexIvfFlat(entity.COSINE, 1024)
	if err != nil {
		t.Fatalf("NewIndexIvfFlat: %v", err)
	}
	if idx.IndexType() != entity.IvfFlat {
		t.Errorf("index type = %v, want %v", idx.IndexType(), entity.IvfFlat)
	}

	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		t.Fatalf("NewIndexIvfFlatSearchParam: %v", err)
	}
	if got := sp.Params()["nprobe"]; got != 16 {
		t.Errorf("nprobe = %v, want 16", got)
	}
}

func TestInsertRejectsDimensionMismatch(t *testing.T) {
	c := &Client{collectionName: "documents", vectorDim: 4}

	chunks := []DocumentChunk{
		{
			ID:        "chunk-1",
			Embedding: []float32{0.1, 0.2},
			Title:     "수질 가이드라인",
			Content:   "조류경보제 기준",
			Timestamp: time.Now(),
		},
	}

	err := c.Insert(context.Background(), chunks)
	if err == nil {
		t.Fatal("expected error for mismatched embedding dimension")
	}
	if !strings.Contains(err.Error(), "dimension") {
		t.Errorf("error = %q, want dimension mismatch", err)
	}
}

func TestInsertEmptyBatchIsNoop(t *testing.T) {
	c := &Client{collectionName: "documents", vectorDim: 4}
	if err := c.Insert(context.Background(), nil); err != nil {
		t.Fatalf("Insert(nil): %v", err)
	}
}
