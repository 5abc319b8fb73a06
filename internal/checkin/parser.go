package checkin

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// Minimum field counts per record kind.
const (
	minFields         = 4
	minIdentityFields = 6
	minPowerFields    = 7
	minCountFields    = 5
)

// defaultCount is used when a wakeup or wakelock count is missing or does
// not parse.
const defaultCount = 1

// Result is the outcome of a successful parse.
type Result struct {
	Entries  []Entry
	Encoding string // name of the encoding that decoded the input
	Rows     int    // rows read from the input
	Skipped  int    // rows dropped as too short or malformed
}

// ParseFile reads path into memory and parses it with Parse.
func ParseFile(path string, encodings []Encoding) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	res, err := Parse(data, encodings)
	if err != nil {
		var decErr *DecodeError
		if errors.As(err, &decErr) {
			decErr.Source = path
		}
		return nil, err
	}
	return res, nil
}

// Parse decodes data with the first encoding that accepts the whole input and
// converts every row to an Entry. Encodings are never mixed within one input.
// If every encoding fails, the error is a *DecodeError.
func Parse(data []byte, encodings []Encoding) (*Result, error) {
	if len(encodings) == 0 {
		encodings = DefaultEncodings()
	}

	decErr := &DecodeError{}
	for _, enc := range encodings {
		text, err := enc.Decode(data)
		if err != nil {
			slog.Warn("failed to decode checkin input", "encoding", enc.Name, "error", err)
			decErr.Encodings = append(decErr.Encodings, enc.Name)
			decErr.Errs = append(decErr.Errs, fmt.Errorf("%s: %w", enc.Name, err))
			continue
		}

		res, err := parseRows(bytes.NewReader(text))
		if err != nil {
			return nil, err
		}
		res.Encoding = enc.Name
		slog.Debug("checkin input decoded", "encoding", enc.Name, "rows", res.Rows, "skipped", res.Skipped)
		return res, nil
	}

	return nil, decErr
}

func parseRows(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	res := &Result{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		res.Rows++

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				slog.Debug("skipping malformed checkin row", "line", parseErr.Line, "error", parseErr.Err)
				res.Skipped++
				continue
			}
			return nil, fmt.Errorf("failed to read checkin rows: %w", err)
		}

		if len(record) < minFields {
			res.Skipped++
			continue
		}

		res.Entries = append(res.Entries, ParseRecord(record, res.Rows))
	}

	return res, nil
}

// ParseRecord converts one raw row (at least four fields) to an Entry. Identity
// and power rows that lack the kind's fields come back as KindOther. Wakeup and
// wakelock rows without a count field count once.
func ParseRecord(record []string, row int) Entry {
	entry := Entry{Kind: KindOther, Row: row, Raw: record}
	if len(record) < minFields {
		return entry
	}

	field := func(i int) string { return strings.TrimSpace(record[i]) }

	switch strings.ToLower(field(3)) {
	case tokenIdentity:
		if len(record) >= minIdentityFields {
			entry.Kind = KindIdentity
			entry.UID = field(4)
			entry.Package = field(5)
		}

	case tokenPower:
		if len(record) >= minPowerFields {
			entry.Kind = KindPower
			if app := field(4); app == uidSentinel {
				entry.Key = Pending(field(1))
			} else {
				entry.Key = Attributed(app)
			}
			entry.Usage = parseFloat(field(5))
			entry.Foreground = parseFloat(field(6))
		}

	case tokenWakeup, tokenWakelock:
		entry.Kind = KindWakeup
		if strings.ToLower(field(3)) == tokenWakelock {
			entry.Kind = KindWakelock
		}
		entry.Count = defaultCount
		if len(record) >= minCountFields {
			entry.Count = parseCount(field(4))
		}
	}

	return entry
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseCount(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultCount
	}
	return v
}
