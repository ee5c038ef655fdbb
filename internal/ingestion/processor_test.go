package ingestion

import (
	"strings"
	"testing"
)

func testProcessor() *Processor {
	return &Processor{chunkSize: 100}
}

func TestCleanHTMLStripsChrome(t *testing.T) {
	html := `<html><head><title>녹조 보고서</title><style>.x{}</style></head>
	<body><nav>메뉴</nav><script>alert(1)</script><p>남조류 세포수가 증가했다.</p><footer>푸터</footer></body></html>`

	text := testProcessor().cleanHTML(html)

	if !strings.Contains(text, "남조류 세포수가 증가했다") {
		t.Errorf("body text missing: %q", text)
	}
	for _, junk := range []string{"alert", "메뉴", "푸터", ".x{}"} {
		if strings.Contains(text, junk) {
			t.Errorf("cleaned text still contains %q", junk)
		}
	}
}

func TestExtractTitle(t *testing.T) {
	p := testProcessor()

	if got := p.extractTitle("<html><head><title>수질 보고서</title></head><body></body></html>"); got != "수질 보고서" {
		t.Errorf("title = %q", got)
	}
	if got := p.extractTitle("<html><body><h1>조류경보</h1></body></html>"); got != "조류경보" {
		t.Errorf("h1 fallback = %q", got)
	}
}

func TestClassifyDocType(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"조류경보제 운영 가이드라인", "가이드라인"},
		{"2023년 수질 보고서", "보고서"},
		{"환경부 보도자료", "보도자료"},
		{"측정기기 매뉴얼", "매뉴얼"},
		{"기타 문서", "일반"},
	}

	for _, c := range cases {
		if got := classifyDocType(c.title, ""); got != c.want {
			t.Errorf("classifyDocType(%q) = %q, want %q", c.title, got, c.want)
		}
	}
}

func TestChunkTextRespectsSize(t *testing.T) {
	p := testProcessor()

	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("This is sentence number " + strings.Repeat("x", 10) + ". ")
	}

	chunks := p.chunkText(b.String())
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want multiple", len(chunks))
	}
	for i, chunk := range chunks {
		// A single sentence may exceed the target, but grouped chunks stay near it.
		if len(chunk) > 2*p.chunkSize {
			t.Errorf("chunk %d length %d far exceeds target %d", i, len(chunk), p.chunkSize)
		}
		if strings.TrimSpace(chunk) == "" {
			t.Errorf("chunk %d is blank", i)
		}
	}
}

func TestHardSplit(t *testing.T) {
	chunks := hardSplit(strings.Repeat("가", 250), 100)

	if len(chunks) != 3 {
		t.Fatalf("chunks = %d, want 3", len(chunks))
	}
	if got := len([]rune(chunks[0])); got != 100 {
		t.Errorf("first chunk runes = %d, want 100", got)
	}
	if got := len([]rune(chunks[2])); got != 50 {
		t.Errorf("last chunk runes = %d, want 50", got)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	if !looksLikeHTML("<html><body>x</body></html>") {
		t.Error("html not detected")
	}
	if looksLikeHTML("그냥 일반 텍스트입니다.") {
		t.Error("plain text misdetected as html")
	}
}
