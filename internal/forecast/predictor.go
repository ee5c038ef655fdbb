package forecast

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/aqualens/backend/pkg/logger"
)

// Result is the outcome of one forecast. Failures are data, not errors: a
// prediction that cannot be made still produces a well-formed Result.
type Result struct {
	Success     bool               `json:"success"`
	Location    string             `json:"location"`
	TargetDate  string             `json:"target_date"`
	Predictions map[string]float64 `json:"predictions,omitempty"`
	Error       string             `json:"error,omitempty"`
	Metadata    *ResultMetadata    `json:"metadata,omitempty"`
}

type ResultMetadata struct {
	Model        string `json:"model"`
	SeqLen       int    `json:"seq_len"`
	Log1pApplied bool   `json:"log1p_applied"`
}

// modelRunner is the forward pass. Split out so tests can supply a fake.
type modelRunner interface {
	run(sequence []float32, temporalIdx, spatialIdx int64) ([]float32, error)
}

// Predictor wraps the loaded sequence model. Construction loads everything
// once; Predict is stateless and safe for concurrent use afterwards.
type Predictor struct {
	bundle  *Bundle
	builder *SequenceBuilder
	model   modelRunner
}

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

var initializeRuntime = func(libraryPath string) error {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	return ort.InitializeEnvironment()
}

// initRuntime initializes the onnxruntime environment once per process.
// The outcome is latched: every later caller sees the first call's error.
func initRuntime(libraryPath string) error {
	ortInitOnce.Do(func() {
		ortInitErr = initializeRuntime(libraryPath)
	})
	return ortInitErr
}

// NewPredictor creates an inference-ready predictor from a loaded bundle.
// onnxLibraryPath optionally points at the onnxruntime shared library.
func NewPredictor(bundle *Bundle, source RecordSource, onnxLibraryPath string) (*Predictor, error) {
	if err := initRuntime(onnxLibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(
		bundle.WeightsPath,
		[]string{"sequence", "temporal_context", "spatial_context"},
		[]string{"predictions"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load model weights: %w", err)
	}

	logger.Info("Forecast model loaded",
		zap.String("weights", bundle.WeightsPath),
		zap.Int("seq_len", bundle.Config.ModelHyperparameters.SeqLen),
	)

	return &Predictor{
		bundle:  bundle,
		builder: NewSequenceBuilder(source, bundle),
		model: &onnxRunner{
			session:     session,
			seqLen:      bundle.Config.ModelHyperparameters.SeqLen,
			numFeatures: bundle.Config.Features.NumFeatures,
			numOutputs:  bundle.Config.Features.NumCyanoVars,
		},
	}, nil
}

// Predict forecasts cyanobacteria variables for a site at targetDate. It never
// returns an error; failures come back as Result{Success: false}.
func (p *Predictor) Predict(location string, targetDate time.Time) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Forecast panicked", zap.Any("panic", r), zap.String("location", location))
			result = p.failure(location, targetDate, fmt.Sprintf("inference failed: %v", r))
		}
	}()

	input, err := p.builder.Build(location, targetDate)
	if err != nil {
		if errors.Is(err, ErrInsufficientData) {
			return p.failure(location, targetDate, "insufficient historical data")
		}
		logger.Warn("Sequence assembly failed", zap.Error(err), zap.String("location", location))
		return p.failure(location, targetDate, err.Error())
	}

	temporalIdx, known := p.bundle.TemporalEncoder.Transform(input.TemporalKey)
	if !known {
		logger.Debug("Unseen temporal category, using default index",
			zap.String("key", input.TemporalKey))
	}
	spatialIdx, known := p.bundle.SpatialEncoder.Transform(input.SpatialKey)
	if !known {
		logger.Debug("Unseen spatial category, using default index",
			zap.String("key", input.SpatialKey))
	}

	outputs, err := p.model.run(input.Values, int64(temporalIdx), int64(spatialIdx))
	if err != nil {
		logger.Warn("Model inference failed", zap.Error(err), zap.String("location", location))
		return p.failure(location, targetDate, err.Error())
	}

	predictions := make(map[string]float64, len(outputs))
	for i, name := range p.bundle.Config.Features.CyanoVars {
		if i >= len(outputs) {
			break
		}
		value := float64(outputs[i])
		if p.bundle.Config.Preprocessing.Log1pApplied {
			value = math.Expm1(value)
		}
		predictions[name] = value
	}

	logger.Info("Forecast completed",
		zap.String("location", location),
		zap.String("target_date", targetDate.Format(time.DateOnly)),
	)

	return &Result{
		Success:     true,
		Location:    location,
		TargetDate:  targetDate.Format(time.RFC3339),
		Predictions: predictions,
		Metadata: &ResultMetadata{
			Model:        "TimeSeriesTransformer",
			SeqLen:       p.bundle.Config.ModelHyperparameters.SeqLen,
			Log1pApplied: p.bundle.Config.Preprocessing.Log1pApplied,
		},
	}
}

// Close releases the underlying inference session.
func (p *Predictor) Close() error {
	if r, ok := p.model.(*onnxRunner); ok && r.session != nil {
		return r.session.Destroy()
	}
	return nil
}

func (p *Predictor) failure(location string, targetDate time.Time, msg string) *Result {
	return &Result{
		Success:    false,
		Location:   location,
		TargetDate: targetDate.Format(time.RFC3339),
		Error:      msg,
	}
}

type onnxRunner struct {
	session     *ort.DynamicAdvancedSession
	seqLen      int
	numFeatures int
	numOutputs  int
}

func (r *onnxRunner) run(sequence []float32, temporalIdx, spatialIdx int64) ([]float32, error) {
	seqTensor, err := ort.NewTensor(
		ort.NewShape(1, int64(r.seqLen), int64(r.numFeatures)), sequence)
	if err != nil {
		return nil, fmt.Errorf("failed to create sequence tensor: %w", err)
	}
	defer seqTensor.Destroy()

	temporalTensor, err := ort.NewTensor(ort.NewShape(1), []int64{temporalIdx})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal tensor: %w", err)
	}
	defer temporalTensor.Destroy()

	spatialTensor, err := ort.NewTensor(ort.NewShape(1), []int64{spatialIdx})
	if err != nil {
		return nil, fmt.Errorf("failed to create spatial tensor: %w", err)
	}
	defer spatialTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(r.numOutputs)))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	err = r.session.Run(
		[]ort.Value{seqTensor, temporalTensor, spatialTensor},
		[]ort.Value{outputTensor},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to run inference: %w", err)
	}

	outputs := make([]float32, r.numOutputs)
	copy(outputs, outputTensor.GetData())
	return outputs, nil
}
