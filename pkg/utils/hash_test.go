package utils

import "testing"

func TestNormalizeQuery(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  대청호  남조류   농도 ", "대청호 남조류 농도"},
		{"TOC 측정값", "toc 측정값"},
		{"한강\t수온\n알려줘", "한강 수온 알려줘"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizeQuery(tc.in); got != tc.want {
			t.Errorf("NormalizeQuery(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestQueryKeyIgnoresSpacing(t *testing.T) {
	a := QueryKey("대청호  남조류 농도")
	b := QueryKey(" 대청호 남조류   농도 ")
	if a != b {
		t.Errorf("keys differ for equivalent queries: %s vs %s", a, b)
	}

	c := QueryKey("한강 수온")
	if a == c {
		t.Error("different queries produced the same key")
	}
}

func TestHashStringStable(t *testing.T) {
	if got := HashString("abc"); got != "900150983cd24fb0d6963f7d28e17f72" {
		t.Errorf("HashString(abc) = %s", got)
	}
}
