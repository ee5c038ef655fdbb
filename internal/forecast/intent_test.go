package forecast

import (
	"testing"
	"time"
)

var intentLocations = []string{"강정고령보", "달성보", "강천", "강천보"}

func intentNow() time.Time {
	return time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)
}

func TestDetectNextWeekForecast(t *testing.T) {
	d := NewIntentDetector(intentLocations).WithNow(intentNow)

	intent := d.Detect("강정고령보 다음주 남조류 예측해줘")
	if !intent.NeedsPrediction {
		t.Fatal("expected prediction intent")
	}
	if intent.Location != "강정고령보" {
		t.Errorf("location = %q, want 강정고령보", intent.Location)
	}
	if intent.WeeksAhead != 1 {
		t.Errorf("weeks = %d, want 1", intent.WeeksAhead)
	}

	want := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	if !intent.TargetDate.Equal(want) {
		t.Errorf("target date = %v, want %v", intent.TargetDate, want)
	}
}

func TestDetectExplicitWeekCount(t *testing.T) {
	d := NewIntentDetector(intentLocations).WithNow(intentNow)

	intent := d.Detect("달성보 3주 뒤 전망 알려줘")
	if !intent.NeedsPrediction {
		t.Fatal("expected prediction intent")
	}
	if intent.WeeksAhead != 3 {
		t.Errorf("weeks = %d, want 3", intent.WeeksAhead)
	}

	want := time.Date(2024, 6, 24, 9, 0, 0, 0, time.UTC)
	if !intent.TargetDate.Equal(want) {
		t.Errorf("target date = %v, want %v", intent.TargetDate, want)
	}
}

func TestDetectTriggerWithoutCountDefaultsToOneWeek(t *testing.T) {
	d := NewIntentDetector(intentLocations).WithNow(intentNow)

	intent := d.Detect("녹조 예상 수치가 궁금해")
	if !intent.NeedsPrediction {
		t.Fatal("expected prediction intent")
	}
	if intent.WeeksAhead != 1 {
		t.Errorf("weeks = %d, want default 1", intent.WeeksAhead)
	}
	if intent.Location != "" {
		t.Errorf("location = %q, want empty", intent.Location)
	}
}

func TestDetectLongestLocationWins(t *testing.T) {
	d := NewIntentDetector(intentLocations).WithNow(intentNow)

	intent := d.Detect("강천보 다음주 예측")
	if intent.Location != "강천보" {
		t.Errorf("location = %q, want 강천보", intent.Location)
	}
}

func TestDetectNoTrigger(t *testing.T) {
	d := NewIntentDetector(intentLocations).WithNow(intentNow)

	intent := d.Detect("강천보 어제 수질 데이터 보여줘")
	if intent.NeedsPrediction {
		t.Errorf("unexpected prediction intent: %+v", intent)
	}
}
