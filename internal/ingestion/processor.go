package ingestion

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	prose "github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/aqualens/backend/internal/llm"
	"github.com/aqualens/backend/internal/metrics"
	"github.com/aqualens/backend/internal/storage/models"
	"github.com/aqualens/backend/internal/storage/sqlite"
	"github.com/aqualens/backend/internal/vector/milvus"
	"github.com/aqualens/backend/pkg/logger"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

type Processor struct {
	db        *sqlite.Client
	vectorDB  *milvus.Client
	llmClient *llm.Client
	chunkSize int
}

func NewProcessor(db *sqlite.Client, vectorDB *milvus.Client, llmClient *llm.Client) *Processor {
	return &Processor{
		db:        db,
		vectorDB:  vectorDB,
		llmClient: llmClient,
		chunkSize: 1000,
	}
}

// ProcessDocument cleans, chunks, embeds and indexes one document. Content may
// be raw HTML or plain text.
func (p *Processor) ProcessDocument(ctx context.Context, title, source, content string) (*models.DocumentMeta, error) {
	logger.Info("Processing document", zap.String("source", source))

	text := content
	if looksLikeHTML(content) {
		text = p.cleanHTML(content)
		if title == "" {
			title = p.extractTitle(content)
		}
	}
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
	if text == "" {
		return nil, fmt.Errorf("no content extracted from document")
	}
	if title == "" {
		title = "제목 없음"
	}

	docType := classifyDocType(title, source)

	chunks := p.chunkText(text)
	logger.Info("Document chunked", zap.Int("chunks", len(chunks)))

	embeddings, err := p.llmClient.GenerateBatchEmbeddings(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	docID := uuid.New().String()
	now := time.Now()

	vectorChunks := make([]milvus.DocumentChunk, 0, len(chunks))
	for i, chunkText := range chunks {
		vectorChunks = append(vectorChunks, milvus.DocumentChunk{
			ID:        fmt.Sprintf("%s_%d", docID, i),
			Embedding: embeddings[i],
			Title:     title,
			Content:   chunkText,
			Source:    source,
			DocType:   docType,
			Timestamp: now,
		})
	}

	if err := p.vectorDB.Insert(ctx, vectorChunks); err != nil {
		return nil, fmt.Errorf("failed to insert into vector DB: %w", err)
	}

	meta := &models.DocumentMeta{
		ID:         docID,
		Title:      title,
		Source:     source,
		DocType:    docType,
		ChunkCount: len(chunks),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := p.db.UpsertDocumentMeta(meta); err != nil {
		return nil, fmt.Errorf("failed to register document: %w", err)
	}

	metrics.DocumentsProcessed.Inc()
	logger.Info("Document processed",
		zap.String("doc_id", docID),
		zap.String("doc_type", docType),
		zap.Int("chunks", len(chunks)),
	)

	return meta, nil
}

func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.Contains(lower, "<html") || strings.Contains(lower, "<body") || strings.Contains(lower, "<div")
}

func (p *Processor) cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return doc.Find("body").Text()
}

func (p *Processor) extractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	title := doc.Find("title").First().Text()
	if title == "" {
		title = doc.Find("h1").First().Text()
	}

	return strings.TrimSpace(title)
}

func classifyDocType(title, source string) string {
	combined := strings.ToLower(title + " " + source)

	switch {
	case strings.Contains(combined, "가이드라인") || strings.Contains(combined, "guideline"):
		return "가이드라인"
	case strings.Contains(combined, "보고서") || strings.Contains(combined, "report"):
		return "보고서"
	case strings.Contains(combined, "보도자료") || strings.Contains(combined, "press"):
		return "보도자료"
	case strings.Contains(combined, "매뉴얼") || strings.Contains(combined, "manual"):
		return "매뉴얼"
	}

	return "일반"
}

// chunkText splits text into chunks of roughly chunkSize characters without
// breaking sentences. Falls back to a hard split when sentence detection
// yields nothing usable.
func (p *Processor) chunkText(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return hardSplit(text, p.chunkSize)
	}

	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > p.chunkSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if len(sentence) > p.chunkSize {
			if strings.TrimSpace(current.String()) != "" {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
			}
			chunks = append(chunks, hardSplit(sentence, p.chunkSize)...)
			continue
		}
		current.WriteString(sentence)
		current.WriteString(" ")
	}

	if strings.TrimSpace(current.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}

func splitSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return nil
	}

	var sentences []string
	for _, s := range doc.Sentences() {
		t := strings.TrimSpace(s.Text)
		if t != "" {
			sentences = append(sentences, t)
		}
	}
	return sentences
}

func hardSplit(text string, size int) []string {
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, piece)
		}
	}
	return chunks
}
