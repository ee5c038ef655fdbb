package chat

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aqualens/backend/internal/dataquery"
	"github.com/aqualens/backend/internal/forecast"
	"github.com/aqualens/backend/internal/vector/milvus"
)

const maxContextDocuments = 5

// BuildContext renders the grounding context fed to the LLM. Sections appear
// in a fixed order: documents, structured data, forecast. Any input may be
// nil or empty; the function always returns a usable string.
func BuildContext(docs []milvus.SearchResult, data *dataquery.Result, fc *forecast.Result, alternatives []string) string {
	var b strings.Builder

	if len(docs) > 0 {
		b.WriteString("[관련 문서]\n")
		n := len(docs)
		if n > maxContextDocuments {
			n = maxContextDocuments
		}
		for i := 0; i < n; i++ {
			d := docs[i]
			fmt.Fprintf(&b, "%d. %s (%s)\n%s\n", i+1, d.Title, d.DocType, strings.TrimSpace(d.Content))
		}
		b.WriteString("\n")
	}

	if data != nil {
		b.WriteString("[측정 데이터]\n")
		writeDataSection(&b, data, alternatives)
		b.WriteString("\n")
	}

	if fc != nil {
		b.WriteString("[예측 결과]\n")
		writeForecastSection(&b, fc)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

func writeDataSection(b *strings.Builder, data *dataquery.Result, alternatives []string) {
	m := data.Metadata

	if m.TotalFound == 0 {
		b.WriteString("조건에 맞는 측정 데이터가 없습니다.\n")
		if m.Location != "" {
			fmt.Fprintf(b, "요청 지역: %s\n", m.Location)
		}
		if len(alternatives) > 0 {
			fmt.Fprintf(b, "데이터가 있는 다른 지역: %s\n", strings.Join(alternatives, ", "))
		}
		return
	}

	fmt.Fprintf(b, "총 %d건", m.TotalFound)
	if m.Location != "" {
		fmt.Fprintf(b, ", 지역: %s", m.Location)
	}
	if m.DataType != "" {
		fmt.Fprintf(b, ", 항목: %s", m.DataType)
	}
	if m.DateRange != nil {
		fmt.Fprintf(b, ", 기간: %s ~ %s", m.DateRange.Start, m.DateRange.End)
	}
	b.WriteString("\n")

	if o := data.Statistics.Overall; o.Count > 0 && o.Avg != nil {
		fmt.Fprintf(b, "전체 통계: 평균 %.3f", *o.Avg)
		if o.Min != nil && o.Max != nil {
			fmt.Fprintf(b, ", 최소 %.3f, 최대 %.3f", *o.Min, *o.Max)
		}
		b.WriteString("\n")
	}

	if len(data.Statistics.ByType) > 0 {
		types := make([]string, 0, len(data.Statistics.ByType))
		for t := range data.Statistics.ByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			agg := data.Statistics.ByType[t]
			if agg.Avg == nil {
				continue
			}
			fmt.Fprintf(b, "- %s: %d건, 평균 %.3f\n", t, agg.Count, *agg.Avg)
		}
	}

	limit := len(data.Results)
	if limit > 5 {
		limit = 5
	}
	if limit > 0 {
		b.WriteString("최근 측정값:\n")
		for _, r := range data.Results[:limit] {
			fmt.Fprintf(b, "- %s %s %s", r.Date.Format("2006-01-02"), r.Location, r.DataType)
			if r.Value != nil {
				fmt.Fprintf(b, " %.3f", *r.Value)
				if r.Unit != "" {
					fmt.Fprintf(b, " %s", r.Unit)
				}
			}
			b.WriteString("\n")
		}
	}
}

func writeForecastSection(b *strings.Builder, fc *forecast.Result) {
	if !fc.Success {
		reason := fc.Error
		if reason == "" {
			reason = "알 수 없는 오류"
		}
		fmt.Fprintf(b, "%s 지역의 예측을 생성하지 못했습니다: %s\n", fc.Location, reason)
		return
	}

	fmt.Fprintf(b, "%s 지역 %s 기준 예측:\n", fc.Location, fc.TargetDate)

	vars := make([]string, 0, len(fc.Predictions))
	for v := range fc.Predictions {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	for _, v := range vars {
		fmt.Fprintf(b, "- %s: %.2f\n", v, fc.Predictions[v])
	}
}
