package extraction

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services"
	"github.com/xuri/excelize/v2"
)

// FAQEntry is one row of an FAQ export
type FAQEntry struct {
	Question  string
	Answer    string
	PageURL   string
	PageTitle string
}

// Content is the text embedded for the entry
func (e FAQEntry) Content() string {
	return fmt.Sprintf("Question: %s\nAnswer: %s", e.Question, e.Answer)
}

// Source converts the entry for ingestion
func (e FAQEntry) Source() models.Source {
	return models.Source{SourceURL: e.PageURL, Title: e.PageTitle, Content: e.Content()}
}

// Sources converts entries for ingestion
func Sources(entries []FAQEntry) []models.Source {
	out := make([]models.Source, len(entries))
	for i, e := range entries {
		out[i] = e.Source()
	}
	return out
}

var faqColumns = []string{"question", "answer", "page_url", "page_title"}

// LoadFAQCSV reads an FAQ export with a header row naming at least
// question, answer, page_url and page_title. Column order is free.
func LoadFAQCSV(r io.Reader) ([]FAQEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, services.NewDomainError(services.ErrorTypeValidation, "faq csv is empty", nil)
		}
		return nil, fmt.Errorf("failed to read faq csv header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read faq csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return entriesFromRows(header, rows)
}

// LoadFAQSpreadsheet reads the first sheet of an .xlsx workbook with the same columns as LoadFAQCSV
func LoadFAQSpreadsheet(r io.Reader) ([]FAQEntry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "workbook has no sheets", nil)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "faq sheet is empty", nil)
	}
	return entriesFromRows(rows[0], rows[1:])
}

func entriesFromRows(header []string, rows [][]string) ([]FAQEntry, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	for _, col := range faqColumns {
		if _, ok := index[col]; !ok {
			return nil, services.NewDomainError(services.ErrorTypeValidation,
				fmt.Sprintf("faq export is missing column %q", col), nil)
		}
	}

	cell := func(row []string, col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	entries := make([]FAQEntry, 0, len(rows))
	for _, row := range rows {
		entry := FAQEntry{
			Question:  cell(row, "question"),
			Answer:    cell(row, "answer"),
			PageURL:   cell(row, "page_url"),
			PageTitle: cell(row, "page_title"),
		}
		if entry.Question == "" && entry.Answer == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
