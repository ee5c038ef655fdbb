package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aqualens/backend/internal/storage/models"
)

// ErrInsufficientData means at least one weekly window had no measurements at
// all. A week with some records but gaps in individual features does NOT trip
// this; those features are imputed as 0.0 instead.
var ErrInsufficientData = errors.New("insufficient historical data")

// RecordSource provides the measurements backing sequence assembly.
type RecordSource interface {
	RecordsInWindow(location string, start, end time.Time) ([]models.EnvironmentalRecord, error)
}

// InputSequence is the model-ready input: seq_len weekly feature vectors in
// canonical feature order, log-transformed and scaler-normalized, flattened
// row-major, plus the categorical context keys.
type InputSequence struct {
	Values      []float32
	SeqLen      int
	NumFeatures int
	TemporalKey string
	SpatialKey  string
}

type SequenceBuilder struct {
	source RecordSource
	bundle *Bundle
}

func NewSequenceBuilder(source RecordSource, bundle *Bundle) *SequenceBuilder {
	return &SequenceBuilder{source: source, bundle: bundle}
}

// Build assembles the weekly input sequence ending the week before targetDate.
// For offsets seq_len..1 the window is
// [targetDate - offset weeks, targetDate - (offset-1) weeks).
func (b *SequenceBuilder) Build(location string, targetDate time.Time) (*InputSequence, error) {
	seqLen := b.bundle.Config.ModelHyperparameters.SeqLen
	featureOrder := b.bundle.Config.Features.FeatureOrder
	numFeatures := len(featureOrder)

	values := make([]float32, 0, seqLen*numFeatures)

	for offset := seqLen; offset >= 1; offset-- {
		weekStart := targetDate.AddDate(0, 0, -7*offset)
		weekEnd := targetDate.AddDate(0, 0, -7*(offset-1))

		records, err := b.source.RecordsInWindow(location, weekStart, weekEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to load week %d: %w", offset, err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("%w: no records for %s in week of %s",
				ErrInsufficientData, location, weekStart.Format(time.DateOnly))
		}

		week := weeklyAverages(records, featureOrder)
		values = append(values, week...)
	}

	if b.bundle.Config.Preprocessing.Log1pApplied {
		for i := range values {
			values[i] = float32(math.Log1p(float64(values[i])))
		}
	}

	for row := 0; row < seqLen; row++ {
		b.bundle.Scaler.Transform(values[row*numFeatures : (row+1)*numFeatures])
	}

	lastWeek := targetDate.AddDate(0, 0, -7)
	return &InputSequence{
		Values:      values,
		SeqLen:      seqLen,
		NumFeatures: numFeatures,
		TemporalKey: WeekOfYearKey(lastWeek),
		SpatialKey:  location,
	}, nil
}

// weeklyAverages averages non-null values per feature over one window.
// A feature with no values that week is 0.0.
func weeklyAverages(records []models.EnvironmentalRecord, featureOrder []string) []float32 {
	sums := make(map[string]float64, len(featureOrder))
	counts := make(map[string]int, len(featureOrder))

	for _, rec := range records {
		if rec.Value == nil {
			continue
		}
		sums[rec.DataType] += *rec.Value
		counts[rec.DataType]++
	}

	week := make([]float32, len(featureOrder))
	for i, feature := range featureOrder {
		if n := counts[feature]; n > 0 {
			week[i] = float32(sums[feature] / float64(n))
		}
	}
	return week
}

// WeekOfYearKey formats a date as an ISO "year_week" composite category key.
func WeekOfYearKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d_%02d", year, week)
}
