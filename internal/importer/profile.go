package importer

import "strings"

// amountMode determines how amounts are extracted from a row.
type amountMode int

const (
	// amountSingle is one signed or unsigned amount column.
	amountSingle amountMode = iota
	// amountSplit is a card statement with separate debit and credit columns.
	// Only debits become expenses.
	amountSplit
)

// Profile describes a supported CSV column layout. Column names are matched
// case-insensitively; any of the listed aliases is accepted.
type Profile struct {
	Name       string
	Date       []string
	Desc       []string
	AmountMode amountMode
	Amount     []string
	Debit      []string
	Credit     []string

	// Optional columns.
	Currency      []string
	Category      []string
	PaymentMethod []string
	Receipt       []string
	Tags          []string
}

func (p Profile) required() [][]string {
	cols := [][]string{p.Date, p.Desc}

	switch p.AmountMode {
	case amountSingle:
		cols = append(cols, p.Amount)
	case amountSplit:
		cols = append(cols, p.Debit, p.Credit)
	}

	return cols
}

// profiles are tried in order, so the more specific layouts come first.
var profiles = []Profile{
	{
		// The layout written by the CSV export, so exports can be re-imported.
		Name:          "outlay",
		Date:          []string{"date"},
		Desc:          []string{"description"},
		AmountMode:    amountSingle,
		Amount:        []string{"amount"},
		Currency:      []string{"currency"},
		Category:      []string{"category"},
		PaymentMethod: []string{"payment method"},
		Receipt:       []string{"receipt url"},
		Tags:          []string{"tags"},
	},
	{
		Name:       "card statement",
		Date:       []string{"date", "transaction date", "posting date"},
		Desc:       []string{"description", "merchant", "details"},
		AmountMode: amountSplit,
		Debit:      []string{"debit", "withdrawal"},
		Credit:     []string{"credit", "deposit"},
		Currency:   []string{"currency"},
	},
	{
		Name:       "simple",
		Date:       []string{"date", "transaction date", "posting date"},
		Desc:       []string{"description", "merchant", "details", "memo"},
		AmountMode: amountSingle,
		Amount:     []string{"amount", "value", "total"},
		Currency:   []string{"currency"},
		Category:   []string{"category"},
	},
}

// header maps normalized column names to their index.
type header map[string]int

func newHeader(row []string) header {
	h := make(header, len(row))

	for i, cell := range row {
		name := strings.ToLower(strings.TrimSpace(cell))
		if _, seen := h[name]; name != "" && !seen {
			h[name] = i
		}
	}

	return h
}

// index returns the first alias present, or -1.
func (h header) index(aliases []string) int {
	for _, a := range aliases {
		if i, ok := h[a]; ok {
			return i
		}
	}

	return -1
}

func (h header) matches(p *Profile) bool {
	for _, aliases := range p.required() {
		if h.index(aliases) < 0 {
			return false
		}
	}

	return true
}
