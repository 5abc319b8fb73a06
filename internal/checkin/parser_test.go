package checkin

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const sampleDump = `9,0,i,uid,1000,com.example.app
9,1000,l,pwi,uid,500,5,0,0
9,0,i,wr,3
9,0,i,kwl,2
`

func TestParse_SampleDump(t *testing.T) {
	res, err := Parse([]byte(sampleDump), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if res.Encoding != "utf-8-sig" {
		t.Errorf("expected encoding utf-8-sig, got %s", res.Encoding)
	}
	if len(res.Entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(res.Entries))
	}

	id := res.Entries[0]
	if id.Kind != KindIdentity || id.UID != "1000" || id.Package != "com.example.app" {
		t.Errorf("unexpected identity entry: %+v", id)
	}

	pwr := res.Entries[1]
	if pwr.Kind != KindPower {
		t.Fatalf("expected power entry, got %v", pwr.Kind)
	}
	if !pwr.Key.IsPending() || pwr.Key.UID() != "1000" {
		t.Errorf("expected pending key for uid 1000, got %v", pwr.Key)
	}
	if pwr.Usage != 500 || pwr.Foreground != 5 {
		t.Errorf("expected usage 500 fg 5, got %v %v", pwr.Usage, pwr.Foreground)
	}

	if res.Entries[2].Kind != KindWakeup || res.Entries[2].Count != 3 {
		t.Errorf("unexpected wakeup entry: %+v", res.Entries[2])
	}
	if res.Entries[3].Kind != KindWakelock || res.Entries[3].Count != 2 {
		t.Errorf("unexpected wakelock entry: %+v", res.Entries[3])
	}
}

func TestParse_SkipsShortRows(t *testing.T) {
	input := "9,0,i\n9,0\n9,0,i,wr,4\n"

	res, err := Parse([]byte(input), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if res.Rows != 3 {
		t.Errorf("expected 3 rows, got %d", res.Rows)
	}
	if res.Skipped != 2 {
		t.Errorf("expected 2 skipped rows, got %d", res.Skipped)
	}
	if len(res.Entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(res.Entries))
	}
}

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name   string
		record string
		check  func(t *testing.T, e Entry)
	}{
		{
			name:   "named package power row",
			record: "9,10123,l,pwi,com.foo.bar,12.5,1.5",
			check: func(t *testing.T, e Entry) {
				if e.Kind != KindPower || e.Key != Attributed("com.foo.bar") {
					t.Errorf("unexpected entry %+v", e)
				}
				if e.Usage != 12.5 || e.Foreground != 1.5 {
					t.Errorf("expected 12.5/1.5, got %v/%v", e.Usage, e.Foreground)
				}
			},
		},
		{
			name:   "case insensitive and trimmed kind",
			record: "9,0,i, PWI , scrn , 7 , 0 ",
			check: func(t *testing.T, e Entry) {
				if e.Kind != KindPower || e.Key != Attributed("scrn") || e.Usage != 7 {
					t.Errorf("unexpected entry %+v", e)
				}
			},
		},
		{
			name:   "unparsable usage defaults to zero",
			record: "9,0,i,pwi,cpu,abc,xyz",
			check: func(t *testing.T, e Entry) {
				if e.Kind != KindPower || e.Usage != 0 || e.Foreground != 0 {
					t.Errorf("unexpected entry %+v", e)
				}
			},
		},
		{
			name:   "short power row is bare",
			record: "9,0,i,pwi,cpu,12",
			check: func(t *testing.T, e Entry) {
				if e.Kind != KindOther {
					t.Errorf("expected KindOther, got %v", e.Kind)
				}
			},
		},
		{
			name:   "short identity row is bare",
			record: "9,0,i,uid,1000",
			check: func(t *testing.T, e Entry) {
				if e.Kind != KindOther {
					t.Errorf("expected KindOther, got %v", e.Kind)
				}
			},
		},
		{
			name:   "unparsable count defaults to one",
			record: "9,0,i,wr,many",
			check: func(t *testing.T, e Entry) {
				if e.Kind != KindWakeup || e.Count != 1 {
					t.Errorf("unexpected entry %+v", e)
				}
			},
		},
		{
			name:   "wakelock row without count counts once",
			record: "9,0,i,kwl",
			check: func(t *testing.T, e Entry) {
				if e.Kind != KindWakelock || e.Count != 1 {
					t.Errorf("expected wakelock with count 1, got %+v", e)
				}
			},
		},
		{
			name:   "wakeup row without count counts once",
			record: "9,0,i,wr",
			check: func(t *testing.T, e Entry) {
				if e.Kind != KindWakeup || e.Count != 1 {
					t.Errorf("expected wakeup with count 1, got %+v", e)
				}
			},
		},
		{
			name:   "nan usage is zero",
			record: "9,0,l,pwi,com.a,nan,0",
			check: func(t *testing.T, e Entry) {
				if e.Kind != KindPower || e.Usage != 0 {
					t.Errorf("expected usage 0, got %+v", e)
				}
			},
		},
		{
			name:   "infinite usage and foreground are zero",
			record: "9,0,l,pwi,com.b,inf,-Infinity",
			check: func(t *testing.T, e Entry) {
				if e.Kind != KindPower || e.Usage != 0 || e.Foreground != 0 {
					t.Errorf("expected zero usage and foreground, got %+v", e)
				}
			},
		},
		{
			name:   "unknown kind",
			record: "9,0,i,vers,32,191",
			check: func(t *testing.T, e Entry) {
				if e.Kind != KindOther {
					t.Errorf("expected KindOther, got %v", e.Kind)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ParseRecord(strings.Split(tt.record, ","), 1))
		})
	}
}

func TestParse_QuotedFields(t *testing.T) {
	input := "9,0,i,uid,1000,\"com.example.app,with,commas\"\n"

	res, err := Parse([]byte(input), nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(res.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(res.Entries))
	}
	if got := res.Entries[0].Package; got != "com.example.app,with,commas" {
		t.Errorf("expected quoted package name, got %q", got)
	}
}

func TestParse_UTF8BOM(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("9,0,i,wr,3\n")...)

	res, err := Parse(input, nil)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if res.Encoding != "utf-8-sig" {
		t.Errorf("expected utf-8-sig, got %s", res.Encoding)
	}
	if len(res.Entries) != 1 || res.Entries[0].Count != 3 {
		t.Errorf("unexpected entries: %+v", res.Entries)
	}
}

func encodeUTF16(t *testing.T, s string, endian unicode.Endianness) []byte {
	t.Helper()
	out, _, err := transform.Bytes(unicode.UTF16(endian, unicode.UseBOM).NewEncoder(), []byte(s))
	if err != nil {
		t.Fatalf("failed to encode utf-16: %v", err)
	}
	return out
}

func TestParse_FallsBackToUTF16(t *testing.T) {
	for _, endian := range []unicode.Endianness{unicode.LittleEndian, unicode.BigEndian} {
		input := encodeUTF16(t, sampleDump, endian)

		res, err := Parse(input, nil)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if res.Encoding != "utf-16" {
			t.Errorf("expected utf-16 to win, got %s", res.Encoding)
		}
		if len(res.Entries) != 4 {
			t.Errorf("expected 4 entries, got %d", len(res.Entries))
		}
	}
}

func TestParse_AllEncodingsFail(t *testing.T) {
	input := []byte{0xFF, 0xFE, 0x41}

	_, err := Parse(input, nil)
	if err == nil {
		t.Fatal("expected decode error, got nil")
	}

	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %T", err)
	}
	if len(decErr.Encodings) != 2 || decErr.Encodings[0] != "utf-8-sig" || decErr.Encodings[1] != "utf-16" {
		t.Errorf("unexpected attempted encodings: %v", decErr.Encodings)
	}
	if !strings.Contains(err.Error(), "utf-8-sig, utf-16") {
		t.Errorf("error should name encodings: %v", err)
	}
	if !errors.Is(err, errOddLength) {
		t.Errorf("expected odd-length cause to be wrapped")
	}
}

func TestParse_UnpairedSurrogateRejected(t *testing.T) {
	// BOM, then a lone high surrogate followed by 'A'.
	input := []byte{0xFF, 0xFE, 0x00, 0xD8, 0x41, 0x00}

	if _, err := Parse(input, []Encoding{UTF16}); err == nil {
		t.Error("expected unpaired surrogate to fail decoding")
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkin.csv")
	if err := os.WriteFile(path, []byte(sampleDump), 0644); err != nil {
		t.Fatalf("failed to write dump: %v", err)
	}

	res, err := ParseFile(path, DefaultEncodings())
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(res.Entries) != 4 {
		t.Errorf("expected 4 entries, got %d", len(res.Entries))
	}
}

func TestParseFile_DecodeErrorNamesSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.csv")
	if err := os.WriteFile(path, []byte{0xFF, 0xFE, 0x41}, 0644); err != nil {
		t.Fatalf("failed to write dump: %v", err)
	}

	_, err := ParseFile(path, nil)
	var decErr *DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if decErr.Source != path {
		t.Errorf("expected source %s, got %s", path, decErr.Source)
	}
}

func TestLookupEncodings(t *testing.T) {
	encs, err := LookupEncodings([]string{"utf-16", "utf-8-sig"})
	if err != nil {
		t.Fatalf("LookupEncodings failed: %v", err)
	}
	if encs[0].Name != "utf-16" || encs[1].Name != "utf-8-sig" {
		t.Errorf("unexpected order: %v", encs)
	}

	if _, err := LookupEncoding("latin-1"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}
