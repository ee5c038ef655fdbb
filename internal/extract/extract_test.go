package extract

import (
	"errors"
	"testing"
	"time"
)

var testGazetteer = []string{"강천", "강천보", "강정고령보", "달성보", "죽산보"}

var testFeatures = []string{"cyanobacteria", "chlorophyll_a", "total_nitrogen"}

type fakeResolver struct {
	location string
	err      error
}

func (f *fakeResolver) NearestLocation(lat, lon, tol float64) (string, error) {
	return f.location, f.err
}

func fixedNow() time.Time {
	return time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
}

func TestExtractDateRangeYearMonth(t *testing.T) {
	e := NewExtractor(testGazetteer, testFeatures, nil)

	f := e.Extract("2022년 3월 강천보 남조류 데이터 보여줘")
	if f.DateRange == nil {
		t.Fatal("expected date range, got nil")
	}

	wantStart := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2022, 3, 31, 0, 0, 0, 0, time.UTC)
	if !f.DateRange.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", f.DateRange.Start, wantStart)
	}
	if !f.DateRange.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", f.DateRange.End, wantEnd)
	}
}

func TestExtractDateRangePastYears(t *testing.T) {
	e := NewExtractor(testGazetteer, testFeatures, nil).WithNow(fixedNow)

	f := e.Extract("과거 2년 수질 추이 알려줘")
	if f.DateRange == nil {
		t.Fatal("expected date range, got nil")
	}

	wantStart := time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	if !f.DateRange.Start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", f.DateRange.Start, wantStart)
	}
	if !f.DateRange.End.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", f.DateRange.End, wantEnd)
	}
}

func TestExtractDateRangeISODate(t *testing.T) {
	e := NewExtractor(testGazetteer, testFeatures, nil)

	f := e.Extract("2023-08-01 측정값")
	if f.DateRange == nil {
		t.Fatal("expected date range, got nil")
	}
	want := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)
	if !f.DateRange.Start.Equal(want) || !f.DateRange.End.Equal(want) {
		t.Errorf("range = [%v, %v], want single day %v", f.DateRange.Start, f.DateRange.End, want)
	}
}

func TestExtractDateRangeNone(t *testing.T) {
	e := NewExtractor(testGazetteer, testFeatures, nil)

	f := e.Extract("강천보 수질 어때")
	if f.DateRange != nil {
		t.Errorf("expected nil date range, got %+v", f.DateRange)
	}
}

func TestParseCoordinates(t *testing.T) {
	lat, lon, ok := ParseCoordinates("(37.0, 128.4) 근처 측정소")
	if !ok {
		t.Fatal("expected coordinates to parse")
	}
	if lat != 37.0 || lon != 128.4 {
		t.Errorf("got (%v, %v), want (37.0, 128.4)", lat, lon)
	}
}

func TestParseCoordinatesLabeled(t *testing.T) {
	lat, lon, ok := ParseCoordinates("위도: 36.5, 경도: 127.3 지점 데이터")
	if !ok {
		t.Fatal("expected coordinates to parse")
	}
	if lat != 36.5 || lon != 127.3 {
		t.Errorf("got (%v, %v), want (36.5, 127.3)", lat, lon)
	}
}

func TestParseCoordinatesOutOfBounds(t *testing.T) {
	if _, _, ok := ParseCoordinates("(10.0, 200.0) 이건 좌표가 아님"); ok {
		t.Error("out-of-bounds pair should not parse as coordinates")
	}
	if _, _, ok := ParseCoordinates("(3, 5) 단순 숫자"); ok {
		t.Error("small numbers should not parse as coordinates")
	}
}

func TestExtractLocationCoordinateResolved(t *testing.T) {
	e := NewExtractor(testGazetteer, testFeatures, &fakeResolver{location: "달성보"})

	f := e.Extract("(35.8, 128.4) 지점 남조류")
	if f.Location != "달성보" {
		t.Errorf("location = %q, want 달성보", f.Location)
	}
	if !f.CoordinateResolved {
		t.Error("expected CoordinateResolved to be true")
	}
}

func TestExtractLocationResolverErrorFallsBack(t *testing.T) {
	e := NewExtractor(testGazetteer, testFeatures, &fakeResolver{err: errors.New("db closed")})

	f := e.Extract("(35.8, 128.4) 강천보 데이터")
	if f.Location != "강천보" {
		t.Errorf("location = %q, want gazetteer fallback 강천보", f.Location)
	}
	if f.CoordinateResolved {
		t.Error("expected CoordinateResolved to be false on resolver error")
	}
}

func TestExtractLocationLongestGazetteerWins(t *testing.T) {
	e := NewExtractor(testGazetteer, testFeatures, nil)

	f := e.Extract("강천보 수질 데이터")
	if f.Location != "강천보" {
		t.Errorf("location = %q, want 강천보 (longer entry beats 강천)", f.Location)
	}
}

func TestExtractLocationSuffixFallback(t *testing.T) {
	e := NewExtractor(testGazetteer, testFeatures, nil)

	f := e.Extract("팔당댐 수위 알려줘")
	if f.Location != "팔당댐" {
		t.Errorf("location = %q, want 팔당댐 from suffix match", f.Location)
	}
}

func TestExtractLocationNone(t *testing.T) {
	e := NewExtractor(testGazetteer, testFeatures, nil)

	f := e.Extract("수질이란 무엇인가요")
	if f.Location != "" {
		t.Errorf("location = %q, want empty", f.Location)
	}
}

func TestExtractDataType(t *testing.T) {
	e := NewExtractor(testGazetteer, testFeatures, nil)

	cases := []struct {
		text string
		want string
	}{
		{"녹조 상황 어때", "cyanobacteria"},
		{"남조류 세포수 알려줘", "cyanobacteria"},
		{"클로로필 농도는", "chlorophyll_a"},
		{"총질소 수치", "total_nitrogen"},
		{"수온 변화", "water_temperature"},
		{"chlorophyll_a 값", "chlorophyll_a"},
		{"안녕하세요", ""},
	}

	for _, c := range cases {
		if got := e.Extract(c.text).DataType; got != c.want {
			t.Errorf("Extract(%q).DataType = %q, want %q", c.text, got, c.want)
		}
	}
}
