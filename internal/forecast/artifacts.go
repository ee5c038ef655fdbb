// Package forecast runs the pretrained cyanobacteria sequence model: it
// assembles weekly input sequences from stored measurements, encodes the
// temporal/spatial context, and performs single-sample ONNX inference.
package forecast

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/aqualens/backend/pkg/logger"
)

// Artifact file names inside the model directory. All five are required;
// inference is impossible without any one of them.
const (
	configFile          = "model_config.json"
	scalerFile          = "scaler.json"
	temporalEncoderFile = "temporal_encoder.json"
	spatialEncoderFile  = "spatial_encoder.json"
	weightsFile         = "model.onnx"
)

type Hyperparameters struct {
	DModel         int     `json:"d_model"`
	NHead          int     `json:"nhead"`
	NumLayers      int     `json:"num_layers"`
	DimFeedforward int     `json:"dim_feedforward"`
	Dropout        float64 `json:"dropout"`
	SeqLen         int     `json:"seq_len"`
	MaxSeqLen      int     `json:"max_seq_len"`
}

type Features struct {
	CyanoVars    []string `json:"cyano_vars"`
	WQVars       []string `json:"wq_vars"`
	FeatureOrder []string `json:"feature_order"`
	NumFeatures  int      `json:"num_features"`
	NumCyanoVars int      `json:"num_cyano_vars"`
}

type Preprocessing struct {
	Log1pApplied bool `json:"log1p_applied"`
}

type EncoderInfo struct {
	NumTemporalCategories int      `json:"num_temporal_categories"`
	NumSpatialCategories  int      `json:"num_spatial_categories"`
	TemporalClasses       []string `json:"temporal_classes"`
	SpatialClasses        []string `json:"spatial_classes"`
}

type ModelConfig struct {
	ModelHyperparameters Hyperparameters `json:"model_hyperparameters"`
	Features             Features        `json:"features"`
	Preprocessing        Preprocessing   `json:"preprocessing"`
	Encoders             EncoderInfo     `json:"encoders"`
}

// Scaler is the per-feature standardization fit during training, applied here
// as a pure transform and never refit.
type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// Transform standardizes one feature vector in place.
func (s *Scaler) Transform(features []float32) {
	for i := range features {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		features[i] = float32((float64(features[i]) - s.Mean[i]) / scale)
	}
}

// LabelEncoder maps category strings to embedding indices. An unseen category
// degrades to index 0 so the embedding layer always receives a valid index.
type LabelEncoder struct {
	Classes []string `json:"classes"`

	index map[string]int
}

func (le *LabelEncoder) buildIndex() {
	le.index = make(map[string]int, len(le.Classes))
	for i, c := range le.Classes {
		le.index[c] = i
	}
}

// Transform returns the index of the category and whether it was known.
func (le *LabelEncoder) Transform(category string) (int, bool) {
	if idx, ok := le.index[category]; ok {
		return idx, true
	}
	return 0, false
}

// Bundle is the fixed set of trained-model artifacts, loaded once at startup
// and immutable for the process lifetime.
type Bundle struct {
	Config          ModelConfig
	Scaler          *Scaler
	TemporalEncoder *LabelEncoder
	SpatialEncoder  *LabelEncoder
	WeightsPath     string
}

// Gazetteer returns the known site names the model was trained on.
func (b *Bundle) Gazetteer() []string {
	return b.Config.Encoders.SpatialClasses
}

// LoadBundle reads all five artifacts from dir. A missing or malformed file is
// a construction error; callers are expected to treat it as fatal.
func LoadBundle(dir string) (*Bundle, error) {
	bundle := &Bundle{}

	if err := readJSON(filepath.Join(dir, configFile), &bundle.Config); err != nil {
		return nil, err
	}

	bundle.Scaler = &Scaler{}
	if err := readJSON(filepath.Join(dir, scalerFile), bundle.Scaler); err != nil {
		return nil, err
	}

	numFeatures := bundle.Config.Features.NumFeatures
	if len(bundle.Config.Features.FeatureOrder) != numFeatures {
		return nil, fmt.Errorf("feature_order has %d entries but num_features is %d",
			len(bundle.Config.Features.FeatureOrder), numFeatures)
	}
	if len(bundle.Config.Features.CyanoVars) != bundle.Config.Features.NumCyanoVars {
		return nil, fmt.Errorf("cyano_vars has %d entries but num_cyano_vars is %d",
			len(bundle.Config.Features.CyanoVars), bundle.Config.Features.NumCyanoVars)
	}
	if len(bundle.Scaler.Mean) != numFeatures || len(bundle.Scaler.Scale) != numFeatures {
		return nil, fmt.Errorf("scaler dimensions (%d/%d) do not match num_features %d",
			len(bundle.Scaler.Mean), len(bundle.Scaler.Scale), numFeatures)
	}

	bundle.TemporalEncoder = &LabelEncoder{}
	if err := readJSON(filepath.Join(dir, temporalEncoderFile), bundle.TemporalEncoder); err != nil {
		return nil, err
	}
	bundle.TemporalEncoder.buildIndex()

	bundle.SpatialEncoder = &LabelEncoder{}
	if err := readJSON(filepath.Join(dir, spatialEncoderFile), bundle.SpatialEncoder); err != nil {
		return nil, err
	}
	bundle.SpatialEncoder.buildIndex()

	bundle.WeightsPath = filepath.Join(dir, weightsFile)
	if _, err := os.Stat(bundle.WeightsPath); err != nil {
		return nil, fmt.Errorf("model weights not found at %s: %w", bundle.WeightsPath, err)
	}

	logger.Info("Model artifact bundle loaded",
		zap.String("dir", dir),
		zap.Int("num_features", numFeatures),
		zap.Int("num_cyano_vars", bundle.Config.Features.NumCyanoVars),
		zap.Int("spatial_categories", len(bundle.SpatialEncoder.Classes)),
		zap.Int("temporal_categories", len(bundle.TemporalEncoder.Classes)),
	)

	return bundle, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	return nil
}
