package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aqualens/backend/internal/dataquery"
	"github.com/aqualens/backend/internal/extract"
	"github.com/aqualens/backend/internal/forecast"
	"github.com/aqualens/backend/internal/metrics"
	"github.com/aqualens/backend/internal/storage/models"
	"github.com/aqualens/backend/internal/vector/milvus"
	"github.com/aqualens/backend/pkg/logger"
	"github.com/aqualens/backend/pkg/utils"
)

const (
	searchTopK        = 5
	answerCacheTTL    = 10 * time.Minute
	embeddingCacheTTL = 24 * time.Hour
	maxSuggestions    = 3
)

type DocumentSearcher interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int, docType string) ([]milvus.SearchResult, error)
}

type Answerer interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateAnswer(ctx context.Context, message string, history []models.ChatMessage, groundingContext string) (string, error)
}

type DataQuerier interface {
	Query(f extract.Filter) (*dataquery.Result, error)
	AlternativeLocations(limit int) []string
}

type Forecaster interface {
	Predict(location string, targetDate time.Time) *forecast.Result
}

type FilterExtractor interface {
	Extract(text string) extract.Filter
}

type ForecastIntentDetector interface {
	Detect(text string) forecast.Intent
}

type HistoryStore interface {
	InsertChatRecord(record *models.ChatRecord) error
	GetChatHistory(sessionID string, limit int) ([]models.ChatRecord, error)
}

// AnswerCache is optional; a nil cache disables response caching.
type AnswerCache interface {
	GetAnswer(ctx context.Context, queryHash string, response interface{}) (bool, error)
	SetAnswer(ctx context.Context, queryHash string, response interface{}, ttl time.Duration) error
}

// EmbeddingCache is optional; a nil cache means every search embeds the
// query through the LLM provider.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Request struct {
	Message   string               `json:"message"`
	History   []models.ChatMessage `json:"history"`
	SessionID string               `json:"session_id"`
}

type Visualization struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	DataType string `json:"data_type,omitempty"`
}

type ResponseMetadata struct {
	DocumentsFound int    `json:"documents_found"`
	DataFound      int    `json:"data_found"`
	PredictionRun  bool   `json:"prediction_run"`
	LatencyMS      int    `json:"latency_ms"`
	Cached         bool   `json:"cached,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
}

type Response struct {
	Answer         string            `json:"answer"`
	Suggestions    []string          `json:"suggestions"`
	Data           *dataquery.Result `json:"data,omitempty"`
	Forecast       *forecast.Result  `json:"forecast,omitempty"`
	Visualizations []Visualization   `json:"visualizations,omitempty"`
	Metadata       ResponseMetadata  `json:"metadata"`
}

type Service struct {
	docs       DocumentSearcher
	llm        Answerer
	data       DataQuerier
	forecasts  Forecaster
	extractor  FilterExtractor
	intents    ForecastIntentDetector
	history    HistoryStore
	cache      AnswerCache
	embeddings EmbeddingCache
}

func NewService(
	docs DocumentSearcher,
	llm Answerer,
	data DataQuerier,
	forecasts Forecaster,
	extractor FilterExtractor,
	intents ForecastIntentDetector,
	history HistoryStore,
	cache AnswerCache,
	embeddings EmbeddingCache,
) *Service {
	return &Service{
		docs:       docs,
		llm:        llm,
		data:       data,
		forecasts:  forecasts,
		extractor:  extractor,
		intents:    intents,
		history:    history,
		cache:      cache,
		embeddings: embeddings,
	}
}

// Process answers one chat message. It always returns a response; retrieval
// and forecast failures degrade into an answer that says what went wrong.
func (s *Service) Process(ctx context.Context, req Request) *Response {
	start := time.Now()
	message := strings.TrimSpace(req.Message)

	cacheKey := utils.QueryKey(message)
	cacheable := s.cache != nil && len(req.History) == 0
	if cacheable {
		var cached Response
		hit, err := s.cache.GetAnswer(ctx, cacheKey, &cached)
		if err != nil {
			logger.Warn("Answer cache lookup failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("answer").Inc()
			cached.Metadata.Cached = true
			cached.Metadata.SessionID = req.SessionID
			return &cached
		}
		metrics.CacheMisses.WithLabelValues("answer").Inc()
	}

	intent := s.intents.Detect(message)
	filter := s.extractor.Extract(message)

	var (
		mu         sync.Mutex
		docResults []milvus.SearchResult
		dataResult *dataquery.Result
	)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		searchStart := time.Now()
		results, err := s.searchDocuments(ctx, message)
		metrics.ChatDuration.WithLabelValues("document_search").Observe(time.Since(searchStart).Seconds())
		if err != nil {
			logger.Warn("Document search failed", zap.Error(err))
			return
		}
		mu.Lock()
		docResults = results
		mu.Unlock()
	}()

	go func() {
		defer wg.Done()
		queryStart := time.Now()
		result, err := s.data.Query(filter)
		metrics.ChatDuration.WithLabelValues("data_query").Observe(time.Since(queryStart).Seconds())
		if err != nil {
			logger.Warn("Data query failed", zap.Error(err))
			return
		}
		mu.Lock()
		dataResult = result
		mu.Unlock()
	}()

	wg.Wait()

	metrics.VectorResultsCount.Observe(float64(len(docResults)))
	if dataResult != nil {
		metrics.DataResultsCount.Observe(float64(dataResult.Metadata.TotalFound))
	}

	fcResult := s.maybeForecast(intent, dataResult)

	var alternatives []string
	if dataResult == nil || dataResult.Metadata.TotalFound == 0 {
		alternatives = s.data.AlternativeLocations(3)
	}

	groundingContext := BuildContext(docResults, dataResult, fcResult, alternatives)

	answer, err := s.llm.GenerateAnswer(ctx, message, req.History, groundingContext)
	status := "success"
	if err != nil {
		logger.Error("Answer generation failed", zap.Error(err))
		answer = "오류가 발생했습니다: " + err.Error()
		status = "error"
	}

	resp := &Response{
		Answer:         answer,
		Suggestions:    s.buildSuggestions(filter, dataResult, fcResult, docResults),
		Forecast:       fcResult,
		Visualizations: buildVisualizations(dataResult, fcResult),
		Metadata: ResponseMetadata{
			DocumentsFound: len(docResults),
			PredictionRun:  fcResult != nil,
			LatencyMS:      int(time.Since(start).Milliseconds()),
			SessionID:      req.SessionID,
		},
	}
	if dataResult != nil {
		resp.Metadata.DataFound = dataResult.Metadata.TotalFound
		// An empty match set stays out of the payload; the answer text
		// already explains that nothing matched.
		if len(dataResult.Results) > 0 {
			resp.Data = dataResult
		}
	}

	s.recordHistory(req, resp)

	metrics.ChatDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	metrics.ChatTotal.WithLabelValues(status).Inc()

	if cacheable && status == "success" {
		if err := s.cache.SetAnswer(ctx, cacheKey, resp, answerCacheTTL); err != nil {
			logger.Warn("Answer cache store failed", zap.Error(err))
		}
	}

	return resp
}

func (s *Service) searchDocuments(ctx context.Context, message string) ([]milvus.SearchResult, error) {
	embedding, err := s.lookupEmbedding(ctx, message)
	if err != nil {
		return nil, err
	}
	return s.docs.Search(ctx, embedding, searchTopK, "")
}

// lookupEmbedding serves the query embedding from cache when possible.
// Identical queries repeat often, and the embedding of a fixed text never
// changes, so hits skip one provider round trip.
func (s *Service) lookupEmbedding(ctx context.Context, message string) ([]float32, error) {
	if s.embeddings == nil {
		return s.llm.GenerateEmbedding(ctx, message)
	}

	key := utils.QueryKey(message)
	cached, hit, err := s.embeddings.GetEmbedding(ctx, key)
	if err != nil {
		logger.Warn("Embedding cache lookup failed", zap.Error(err))
	} else if hit {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err := s.llm.GenerateEmbedding(ctx, message)
	if err != nil {
		return nil, err
	}
	if err := s.embeddings.SetEmbedding(ctx, key, embedding, embeddingCacheTTL); err != nil {
		logger.Warn("Embedding cache store failed", zap.Error(err))
	}
	return embedding, nil
}

// maybeForecast runs the predictor only when the message asks for one and a
// location is known, either from the message itself or from the matched data.
func (s *Service) maybeForecast(intent forecast.Intent, data *dataquery.Result) *forecast.Result {
	if !intent.NeedsPrediction {
		return nil
	}

	location := intent.Location
	if location == "" && data != nil {
		location = data.Metadata.Location
	}
	if location == "" {
		logger.Debug("Forecast requested but no location resolved, skipping")
		return nil
	}

	result := s.forecasts.Predict(location, intent.TargetDate)
	if result.Success {
		metrics.ForecastTotal.WithLabelValues("success").Inc()
	} else {
		metrics.ForecastTotal.WithLabelValues("failure").Inc()
	}
	return result
}

func (s *Service) buildSuggestions(filter extract.Filter, data *dataquery.Result, fc *forecast.Result, docs []milvus.SearchResult) []string {
	var suggestions []string

	algaeTopic := filter.DataType == "cyanobacteria" || fc != nil
	if algaeTopic {
		suggestions = append(suggestions, "녹조 예보 기준이 궁금해요")
	}

	if filter.Location != "" && filter.DateRange != nil {
		suggestions = append(suggestions, filter.Location+"의 다른 기간 데이터를 보여줘")
	}

	for _, d := range docs {
		if d.DocType == "가이드라인" {
			suggestions = append(suggestions, "관련 가이드라인 문서를 요약해줘")
			break
		}
	}

	if len(suggestions) == 0 {
		suggestions = append(suggestions, "주요 측정 지점을 알려줘", "최근 수질 데이터를 보여줘")
	}

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	return suggestions
}

func buildVisualizations(data *dataquery.Result, fc *forecast.Result) []Visualization {
	var vis []Visualization

	if data != nil && len(data.Results) > 1 {
		v := Visualization{Type: "time_series", Title: "측정값 추이"}
		v.DataType = data.Metadata.DataType
		vis = append(vis, v)
	}

	if fc != nil && fc.Success {
		vis = append(vis, Visualization{Type: "bar", Title: "예측 결과"})
	}

	return vis
}

func (s *Service) recordHistory(req Request, resp *Response) {
	if s.history == nil || req.SessionID == "" {
		return
	}

	record := &models.ChatRecord{
		ID:               uuid.New().String(),
		SessionID:        req.SessionID,
		Message:          req.Message,
		Answer:           resp.Answer,
		DocumentsCount:   resp.Metadata.DocumentsFound,
		DataResultsCount: resp.Metadata.DataFound,
		PredictionRun:    resp.Metadata.PredictionRun,
		LatencyMS:        resp.Metadata.LatencyMS,
		CreatedAt:        time.Now(),
	}
	if err := s.history.InsertChatRecord(record); err != nil {
		logger.Warn("Failed to record chat history", zap.Error(err))
	}
}
