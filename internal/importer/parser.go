package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	enc "github.com/MrJamesThe3rd/outlay/internal/encoding"
	"github.com/MrJamesThe3rd/outlay/internal/expense"
)

// MaxRows caps the data rows accepted from one file.
const MaxRows = 1000

var (
	ErrNoProfile = errors.New("no supported column layout found: expected date, description and amount (or debit/credit) columns")
	ErrTooMany   = fmt.Errorf("file has more than %d rows", MaxRows)
)

// Row is a parsed data row ready to become a draft expense. UserID and
// CompanyID are left for the caller.
type Row struct {
	Line   int
	Params expense.CreateParams
}

// RowError reports a row that was not imported.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

type Parsed struct {
	Profile string
	Charset string
	Rows    []Row
	Skipped []RowError
}

// Parse reads a CSV statement. The charset, delimiter and column layout are
// detected; the header may be preceded by preamble lines.
func Parse(r io.Reader) (*Parsed, error) {
	utf8r, charset, err := enc.NewUTF8Reader(r)
	if err != nil {
		return nil, fmt.Errorf("detect encoding: %w", err)
	}

	data, err := io.ReadAll(utf8r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	// Blank lines are dropped by the csv reader, so file line numbers are kept alongside.
	var (
		rows  [][]string
		lines []int
	)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)
		rows = append(rows, record)
		lines = append(lines, line)
	}

	profile, cols, headerIdx := detectProfile(rows)
	if profile == nil {
		return nil, ErrNoProfile
	}

	body := rows[headerIdx+1:]
	if len(body) > MaxRows {
		return nil, ErrTooMany
	}

	out := &Parsed{Profile: profile.Name, Charset: charset}
	m := newMapping(profile, cols)

	for i, row := range body {
		line := lines[headerIdx+1+i]

		params, ok, err := m.parse(row)
		if err != nil {
			out.Skipped = append(out.Skipped, RowError{Line: line, Err: err})
			continue
		}

		if ok {
			out.Rows = append(out.Rows, Row{Line: line, Params: params})
		}
	}

	return out, nil
}

// detectDelimiter picks the candidate that occurs most often outside quotes
// in the first lines of data. Ties go to the earlier candidate.
func detectDelimiter(data []byte) rune {
	candidates := []rune{';', ',', '\t', '|'}
	counts := make(map[rune]int, len(candidates))

	lines, inQuotes := 0, false

	for _, r := range string(data) {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == '\n' && !inQuotes:
			lines++
		case !inQuotes:
			counts[r]++
		}

		if lines >= 10 {
			break
		}
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if counts[c] > counts[best] {
			best = c
		}
	}

	return best
}

func detectProfile(rows [][]string) (*Profile, header, int) {
	for rowIdx, row := range rows {
		h := newHeader(row)

		for i := range profiles {
			if h.matches(&profiles[i]) {
				return &profiles[i], h, rowIdx
			}
		}
	}

	return nil, nil, 0
}

// mapping holds the resolved column indexes for one file. Missing optional
// columns are -1.
type mapping struct {
	mode     amountMode
	date     int
	desc     int
	amount   int
	debit    int
	credit   int
	currency int
	category int
	payment  int
	receipt  int
	tags     int
}

func newMapping(p *Profile, h header) mapping {
	return mapping{
		mode:     p.AmountMode,
		date:     h.index(p.Date),
		desc:     h.index(p.Desc),
		amount:   h.index(p.Amount),
		debit:    h.index(p.Debit),
		credit:   h.index(p.Credit),
		currency: h.index(p.Currency),
		category: h.index(p.Category),
		payment:  h.index(p.PaymentMethod),
		receipt:  h.index(p.Receipt),
		tags:     h.index(p.Tags),
	}
}

// parse returns ok=false for rows that are silently ignored: blank or footer
// lines, zero amounts and statement credits.
func (m mapping) parse(row []string) (expense.CreateParams, bool, error) {
	date, ok := parseDate(cell(row, m.date))
	if !ok {
		return expense.CreateParams{}, false, nil
	}

	amount, ok, err := m.parseAmount(row)
	if err != nil || !ok {
		return expense.CreateParams{}, false, err
	}

	desc := cell(row, m.desc)
	if desc == "" {
		return expense.CreateParams{}, false, errors.New("missing description")
	}

	params := expense.CreateParams{
		Amount:      amount,
		Currency:    strings.ToUpper(cell(row, m.currency)),
		Description: desc,
		Date:        date,
		ReceiptURL:  cell(row, m.receipt),
		Tags:        splitTags(cell(row, m.tags)),
	}

	if c, ok := lookupCategory(cell(row, m.category)); ok {
		params.Category = c
	}

	if p, ok := lookupPaymentMethod(cell(row, m.payment)); ok {
		params.PaymentMethod = p
	}

	return params, true, nil
}

func (m mapping) parseAmount(row []string) (int64, bool, error) {
	if m.mode == amountSplit {
		if s := cell(row, m.debit); s != "" {
			minor, err := parseAmount(s)
			if err != nil {
				return 0, false, fmt.Errorf("invalid debit %q", s)
			}

			return abs(minor), minor != 0, nil
		}

		return 0, false, nil
	}

	s := cell(row, m.amount)
	if s == "" {
		return 0, false, nil
	}

	minor, err := parseAmount(s)
	if err != nil {
		return 0, false, fmt.Errorf("invalid amount %q", s)
	}

	// Statements often sign spending negative; an expense is the magnitude.
	return abs(minor), minor != 0, nil
}

var dateLayouts = []string{
	time.DateOnly,
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	time.RFC3339,
	time.DateTime,
}

// parseDate tries day-first layouts before month-first ones.
func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

func lookupCategory(s string) (expense.Category, bool) {
	for _, c := range expense.Categories() {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}

	return "", false
}

func lookupPaymentMethod(s string) (expense.PaymentMethod, bool) {
	for _, p := range expense.PaymentMethods() {
		if strings.EqualFold(string(p), s) {
			return p, true
		}
	}

	return "", false
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}

	var tags []string

	for _, t := range strings.FieldsFunc(s, func(r rune) bool { return r == ';' || r == ',' }) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	return tags
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}

	return strings.TrimSpace(row[idx])
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}

	return n
}
