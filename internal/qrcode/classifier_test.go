package qrcode_test

import (
	"errors"
	"strings"
	"testing"

	"qrassure/internal/qrcode"
)

func testLayout() qrcode.Layout {
	return qrcode.Layout{
		ManualLength:     11,
		ManualDataLength: 10,
		ProcessLength:    300,
		Candidates:       []qrcode.Range{{Start: 47, End: 57}, {Start: 60, End: 70}},
		SiteCode:         qrcode.Range{Start: 0, End: 4},
		OrderNo:          qrcode.Range{Start: 4, End: 14},
		DispatchNo:       qrcode.Range{Start: 14, End: 24},
	}
}

func newClassifier(t *testing.T) *qrcode.Classifier {
	t.Helper()
	c, err := qrcode.NewClassifier(testLayout())
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	return c
}

// processCode builds a 300-character process code with fields at the test offsets.
func processCode(site, order, dispatch, primary, secondary string) string {
	buf := []byte(strings.Repeat("x", 300))
	copy(buf[0:4], site)
	copy(buf[4:14], order)
	copy(buf[14:24], dispatch)
	copy(buf[47:57], primary)
	copy(buf[60:70], secondary)
	return string(buf)
}

func TestClassifyDependsOnLengthOnly(t *testing.T) {
	c := newClassifier(t)
	tests := []struct {
		name string
		raw  string
		want qrcode.Kind
	}{
		{"manual digits", "12345678901", qrcode.KindManual},
		{"manual length letters", "abcdefghijk", qrcode.KindManual},
		{"process", strings.Repeat("A", 300), qrcode.KindProcess},
		{"empty", "", qrcode.KindUnknown},
		{"too short", "1234567890", qrcode.KindUnknown},
		{"between", strings.Repeat("9", 120), qrcode.KindUnknown},
		{"multibyte counted as characters", strings.Repeat("製", 11), qrcode.KindManual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := c.Classify(tt.raw)
			if first != tt.want {
				t.Fatalf("Classify(%q) = %s, want %s", tt.raw, first, tt.want)
			}
			if again := c.Classify(tt.raw); again != first {
				t.Fatalf("classification not stable: %s then %s", first, again)
			}
		})
	}
}

func TestExtractManual(t *testing.T) {
	c := newClassifier(t)

	got, err := c.ExtractManual("12345678901")
	if err != nil {
		t.Fatalf("ExtractManual: %v", err)
	}
	if got.Payload != "1234567890" {
		t.Fatalf("payload = %q, want %q", got.Payload, "1234567890")
	}

	for _, raw := range []string{"1234567890A", "1234567890", "123456789012", "", "１２３４５６７８９０１"} {
		if _, err := c.ExtractManual(raw); !errors.Is(err, qrcode.ErrFormat) {
			t.Errorf("ExtractManual(%q) error = %v, want ErrFormat", raw, err)
		}
	}
}

func TestExtractManualRoundTrip(t *testing.T) {
	c := newClassifier(t)
	digits := "0123456789"
	for offset := 0; offset < 50; offset++ {
		var b strings.Builder
		for i := 0; i < 11; i++ {
			b.WriteByte(digits[(offset*7+i*3)%10])
		}
		raw := b.String()
		got, err := c.ExtractManual(raw)
		if err != nil {
			t.Fatalf("ExtractManual(%q): %v", raw, err)
		}
		if !strings.HasPrefix(raw, got.Payload) || len(got.Payload) != 10 {
			t.Fatalf("payload %q is not the 10-character prefix of %q", got.Payload, raw)
		}
	}
}

func TestExtractProcess(t *testing.T) {
	c := newClassifier(t)
	raw := processCode("S001", "ORD0000042", "DSP0000777", "1234567890", "ABCDEFGHIJ")

	got, err := c.ExtractProcess(raw)
	if err != nil {
		t.Fatalf("ExtractProcess: %v", err)
	}
	if got.SiteCode != "S001" || got.OrderNo != "ORD0000042" || got.DispatchNo != "DSP0000777" {
		t.Fatalf("unexpected auxiliary fields: %+v", got)
	}
	if len(got.Candidates) != 2 || got.Candidates[0] != "1234567890" || got.Candidates[1] != "ABCDEFGHIJ" {
		t.Fatalf("unexpected candidates: %q", got.Candidates)
	}

	if _, err := c.ExtractProcess(raw[:299]); !errors.Is(err, qrcode.ErrFormat) {
		t.Fatalf("expected ErrFormat for short process code, got %v", err)
	}
}

func TestExtractProcessSlicesCharactersNotBytes(t *testing.T) {
	c := newClassifier(t)
	chars := []rune(strings.Repeat("あ", 300))
	copy(chars[0:4], []rune("工場01"))
	got, err := c.ExtractProcess(string(chars))
	if err != nil {
		t.Fatalf("ExtractProcess: %v", err)
	}
	if got.SiteCode != "工場01" {
		t.Fatalf("site code = %q, want %q", got.SiteCode, "工場01")
	}
}

func TestLayoutValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*qrcode.Layout)
	}{
		{"equal lengths", func(l *qrcode.Layout) { l.ProcessLength = l.ManualLength }},
		{"zero manual length", func(l *qrcode.Layout) { l.ManualLength = 0 }},
		{"data longer than manual", func(l *qrcode.Layout) { l.ManualDataLength = 12 }},
		{"no candidates", func(l *qrcode.Layout) { l.Candidates = nil }},
		{"candidate past end", func(l *qrcode.Layout) { l.Candidates[0] = qrcode.Range{Start: 295, End: 301} }},
		{"reversed range", func(l *qrcode.Layout) { l.OrderNo = qrcode.Range{Start: 10, End: 5} }},
		{"negative start", func(l *qrcode.Layout) { l.SiteCode = qrcode.Range{Start: -1, End: 3} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := testLayout()
			tt.mutate(&layout)
			if err := layout.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
			if _, err := qrcode.NewClassifier(layout); err == nil {
				t.Fatal("expected NewClassifier to reject layout")
			}
		})
	}
	if err := testLayout().Validate(); err != nil {
		t.Fatalf("valid layout rejected: %v", err)
	}
}

func TestParseRange(t *testing.T) {
	r, err := qrcode.ParseRange(" 47 : 57 ")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	if r != (qrcode.Range{Start: 47, End: 57}) || r.Len() != 10 || r.String() != "47:57" {
		t.Fatalf("unexpected range %+v", r)
	}
	for _, bad := range []string{"", "47", "a:57", "47:b"} {
		if _, err := qrcode.ParseRange(bad); err == nil {
			t.Errorf("ParseRange(%q) expected error", bad)
		}
	}
}

func TestKindOpposite(t *testing.T) {
	if qrcode.KindManual.Opposite() != qrcode.KindProcess || qrcode.KindProcess.Opposite() != qrcode.KindManual {
		t.Fatal("manual and process should be opposites")
	}
	if qrcode.KindUnknown.Opposite() != qrcode.KindUnknown {
		t.Fatal("unknown has no opposite")
	}
}
