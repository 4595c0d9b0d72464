package export

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/outlay/internal/expense"
)

// Format selects the export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatZIP  Format = "zip"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat maps a query value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatZIP:
		return f, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// ContentType returns the MIME type and file extension for f.
func (f Format) ContentType() (string, string) {
	switch f {
	case FormatJSON:
		return "application/json", "json"
	case FormatZIP:
		return "application/zip", "zip"
	}

	return "text/csv", "csv"
}

type Lister interface {
	List(ctx context.Context, filter expense.ListFilter) ([]*expense.Expense, error)
}

// Service exports expenses and, for bundles, their receipts.
type Service struct {
	expenses        Lister
	publicClient    *http.Client
	trusted         *http.Client
	receiptHosts    map[string]struct{}
	maxReceiptBytes int64
}

// NewService builds an exporter. Without WithReceiptHosts, receipts are only
// fetched from public addresses.
func NewService(expenses Lister, timeout time.Duration, opts ...Option) *Service {
	s := &Service{
		expenses:        expenses,
		publicClient:    publicClient(timeout),
		receiptHosts:    map[string]struct{}{},
		maxReceiptBytes: DefaultMaxReceiptBytes,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.trusted = s.trustedClient(timeout)

	return s
}

// Export writes the expenses matching filter to w in the given format.
func (s *Service) Export(ctx context.Context, filter expense.ListFilter, format Format, w io.Writer) error {
	expenses, err := s.expenses.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing expenses: %w", err)
	}

	switch format {
	case FormatCSV:
		return WriteCSV(w, expenses)
	case FormatJSON:
		return WriteJSON(w, expenses)
	case FormatZIP:
		return s.writeBundle(ctx, w, expenses)
	}

	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

var csvHeader = []string{
	"ID", "Date", "Description", "Category", "Amount", "Currency",
	"Converted Amount", "Company Currency", "Exchange Rate", "Payment Method",
	"Status", "Submitted At", "Receipt URL", "Tags",
}

func WriteCSV(w io.Writer, expenses []*expense.Expense) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, e := range expenses {
		var converted, rate, submitted string

		if e.ConvertedAmount != nil {
			converted = formatMinor(*e.ConvertedAmount)
			rate = e.ExchangeRate.String()
		}

		if e.SubmittedAt != nil {
			submitted = e.SubmittedAt.UTC().Format(time.RFC3339)
		}

		record := []string{
			e.ID.String(),
			e.Date.Format(time.DateOnly),
			e.Description,
			string(e.Category),
			formatMinor(e.Amount),
			e.Currency,
			converted,
			e.CompanyCurrency,
			rate,
			string(e.PaymentMethod),
			string(e.Status),
			submitted,
			e.ReceiptURL,
			strings.Join(e.Tags, ";"),
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row for expense %s: %w", e.ID, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

type approvalJSON struct {
	ApproverID string     `json:"approverId"`
	Order      int        `json:"order"`
	Status     string     `json:"status"`
	Comment    string     `json:"comment,omitempty"`
	ActedAt    *time.Time `json:"actedAt,omitempty"`
}

type expenseJSON struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	Date            string           `json:"date"`
	Description     string           `json:"description"`
	Category        string           `json:"category"`
	Amount          decimal.Decimal  `json:"amount"`
	Currency        string           `json:"currency"`
	ConvertedAmount *decimal.Decimal `json:"convertedAmount,omitempty"`
	CompanyCurrency string           `json:"companyCurrency,omitempty"`
	ExchangeRate    *decimal.Decimal `json:"exchangeRate,omitempty"`
	PaymentMethod   string           `json:"paymentMethod"`
	Status          string           `json:"status"`
	ReceiptURL      string           `json:"receiptUrl,omitempty"`
	Tags            []string         `json:"tags"`
	Approvals       []approvalJSON   `json:"approvals"`
	SubmittedAt     *time.Time       `json:"submittedAt,omitempty"`
}

type exportJSON struct {
	ExportedAt time.Time     `json:"exportedAt"`
	Count      int           `json:"count"`
	Expenses   []expenseJSON `json:"expenses"`
}

func WriteJSON(w io.Writer, expenses []*expense.Expense) error {
	doc := exportJSON{
		ExportedAt: time.Now().UTC(),
		Count:      len(expenses),
		Expenses:   make([]expenseJSON, 0, len(expenses)),
	}

	for _, e := range expenses {
		item := expenseJSON{
			ID:              e.ID.String(),
			UserID:          e.UserID.String(),
			Date:            e.Date.Format(time.DateOnly),
			Description:     e.Description,
			Category:        string(e.Category),
			Amount:          decimal.New(e.Amount, -2),
			Currency:        e.Currency,
			CompanyCurrency: e.CompanyCurrency,
			PaymentMethod:   string(e.PaymentMethod),
			Status:          string(e.Status),
			ReceiptURL:      e.ReceiptURL,
			Tags:            e.Tags,
			Approvals:       make([]approvalJSON, 0, len(e.Approvals)),
			SubmittedAt:     e.SubmittedAt,
		}

		if item.Tags == nil {
			item.Tags = []string{}
		}

		if e.ConvertedAmount != nil {
			item.ConvertedAmount = new(decimal.New(*e.ConvertedAmount, -2))
			item.ExchangeRate = new(e.ExchangeRate)
		}

		for _, a := range e.Approvals {
			item.Approvals = append(item.Approvals, approvalJSON{
				ApproverID: a.ApproverID.String(),
				Order:      a.Order,
				Status:     string(a.Status),
				Comment:    a.Comment,
				ActedAt:    a.ActedAt,
			})
		}

		doc.Expenses = append(doc.Expenses, item)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding json export: %w", err)
	}

	return nil
}

// Item links an exported expense to its receipt inside a bundle.
type Item struct {
	Expense     *expense.Expense
	ReceiptFile string
}

// writeBundle writes a zip holding expenses.csv, each downloadable receipt
// under receipts/, and summary.txt.
func (s *Service) writeBundle(ctx context.Context, w io.Writer, expenses []*expense.Expense) error {
	zw := zip.NewWriter(w)

	csvFile, err := zw.Create("expenses.csv")
	if err != nil {
		return fmt.Errorf("creating expenses.csv: %w", err)
	}

	if err := WriteCSV(csvFile, expenses); err != nil {
		return err
	}

	items := make([]Item, 0, len(expenses))

	for _, e := range expenses {
		item := Item{Expense: e}

		if e.ReceiptURL != "" {
			name, err := s.downloadReceipt(ctx, zw, e)
			if err != nil {
				// A missing receipt should not sink the whole export.
				slog.WarnContext(ctx, "failed to download receipt", "expense_id", e.ID, "error", err)
			}

			item.ReceiptFile = name
		}

		items = append(items, item)
	}

	summary, err := zw.Create("summary.txt")
	if err != nil {
		return fmt.Errorf("creating summary.txt: %w", err)
	}

	if _, err := io.WriteString(summary, Summary(items)); err != nil {
		return fmt.Errorf("writing summary.txt: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing zip: %w", err)
	}

	return nil
}

func (s *Service) downloadReceipt(ctx context.Context, zw *zip.Writer, e *expense.Expense) (string, error) {
	resp, data, err := s.fetchReceipt(ctx, e)
	if err != nil {
		return "", err
	}

	name := "receipts/" + receiptFilename(resp, e)

	f, err := zw.Create(name)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", name, err)
	}

	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}

	return name, nil
}

// receiptFilename names a receipt YYYYMMDD_<description>_<short id>.<ext>, or
// uses the server's Content-Disposition filename when it sends one.
func receiptFilename(resp *http.Response, e *expense.Expense) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if filename := params["filename"]; filename != "" {
				return e.ID.String()[:8] + "_" + strings.ReplaceAll(path.Base(filename), " ", "_")
			}
		}
	}

	ext := ".pdf"

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if exts, _ := mime.ExtensionsByType(ct); len(exts) > 0 {
			ext = exts[0]
		}
	}

	safeDesc := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}

		return '_'
	}, e.Description)

	return fmt.Sprintf("%s_%s_%s%s", e.Date.Format("20060102"), safeDesc, e.ID.String()[:8], ext)
}

// Summary renders one line per exported expense.
func Summary(items []Item) string {
	var sb strings.Builder

	for _, item := range items {
		e := item.Expense

		receipt := "no receipt"
		if item.ReceiptFile != "" {
			receipt = path.Base(item.ReceiptFile)
		}

		fmt.Fprintf(&sb, "* %s | %s | %s %s | %s | %s\n",
			e.Date.Format(time.DateOnly), e.Description, formatMinor(e.Amount), e.Currency, e.Status, receipt)
	}

	return sb.String()
}

func formatMinor(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
