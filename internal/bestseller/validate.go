package bestseller

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"bestsellers/internal/logger"

	"github.com/go-playground/validator/v10"
)

var (
	isbn13Pattern = regexp.MustCompile(`^\d{13}$`)
	isbn10Pattern = regexp.MustCompile(`^\d{9}[\dX]$`)
)

// TableRow marks violations that concern the whole table.
const TableRow = -1

// Violation is one failed check.
type Violation struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationReport summarises a books table. It never blocks anything by itself;
// callers decide what to do with violations.
type ValidationReport struct {
	RowCount    int         `json:"row_count"`
	ColumnCount int         `json:"column_count"`
	HasISBN13   bool        `json:"has_isbn13"`
	HasISBN10   bool        `json:"has_isbn10"`
	Violations  []Violation `json:"violations"`
}

func (r ValidationReport) OK() bool {
	return len(r.Violations) == 0
}

type Validator struct {
	expectedRows int
	validate     *validator.Validate
}

// NewValidator builds a Validator. expectedRows of zero disables the row count check.
func NewValidator(expectedRows int) *Validator {
	v := validator.New()
	_ = v.RegisterValidation("isbn", validateISBN)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("db")
	})
	return &Validator{expectedRows: expectedRows, validate: v}
}

// Validate inspects the table and logs what it found.
func (v *Validator) Validate(ctx context.Context, table BookTable) ValidationReport {
	report := ValidationReport{
		RowCount:    len(table.Rows),
		ColumnCount: len(table.Columns),
	}

	if report.RowCount == 0 {
		report.add(TableRow, "", "empty_table", "table has no rows")
	}
	if v.expectedRows > 0 && report.RowCount != v.expectedRows {
		report.add(TableRow, "", "row_count", fmt.Sprintf("expected %d rows, got %d", v.expectedRows, report.RowCount))
	}
	if report.ColumnCount != len(Columns) {
		report.add(TableRow, "", "column_count", fmt.Sprintf("expected %d columns, got %d", len(Columns), report.ColumnCount))
	}

	ranks := make(map[int64]int)
	dates := make(map[string]bool)
	for i, row := range table.Rows {
		if row.PrimaryISBN13 != nil {
			report.HasISBN13 = true
		} else {
			report.add(i, "primary_isbn13", "required", "primary_isbn13 is missing")
		}
		if row.PrimaryISBN10 != nil {
			report.HasISBN10 = true
		}

		if row.ListPublishedDate == nil {
			report.add(i, "list_published_date", "required", "list_published_date is missing")
		} else {
			dates[row.ListPublishedDate.String()] = true
		}

		switch {
		case row.Rank == nil:
			report.add(i, "rank", "required", "rank is missing")
		case *row.Rank < 1:
			report.add(i, "rank", "gte", fmt.Sprintf("rank must be at least 1, got %d", *row.Rank))
		default:
			if first, seen := ranks[*row.Rank]; seen {
				report.add(i, "rank", "unique", fmt.Sprintf("rank %d already used by row %d", *row.Rank, first))
			} else {
				ranks[*row.Rank] = i
			}
		}

		v.checkFields(&report, i, row)
	}

	if len(dates) > 1 {
		report.add(TableRow, "list_published_date", "single_value", fmt.Sprintf("found %d different list dates", len(dates)))
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("rows", report.RowCount).
		Int("columns", report.ColumnCount).
		Bool("isbn13_present", report.HasISBN13).
		Bool("isbn10_present", report.HasISBN10).
		Int("violations", len(report.Violations)).
		Msg("validation report")
	for _, vi := range report.Violations {
		log.Warn().Int("row", vi.Row).Str("column", vi.Column).Str("rule", vi.Rule).Msg(vi.Message)
	}
	return report
}

func (v *Validator) checkFields(report *ValidationReport, row int, rec BookRecord) {
	err := v.validate.Struct(rec)
	if err == nil {
		return
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		report.add(row, "", "invalid", err.Error())
		return
	}
	for _, fe := range errs {
		report.add(row, fe.Field(), fe.Tag(), fieldMessage(fe))
	}
}

func (r *ValidationReport) add(row int, column, rule, message string) {
	r.Violations = append(r.Violations, Violation{Row: row, Column: column, Rule: rule, Message: message})
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "isbn":
		return fmt.Sprintf("%s must be a %s-character ISBN, got %v", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must not be negative, got %v", field, fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

// validateISBN checks shape only: isbn=13 or isbn=10, hyphens and spaces ignored.
func validateISBN(fl validator.FieldLevel) bool {
	isbn := fl.Field().String()
	isbn = strings.ReplaceAll(isbn, "-", "")
	isbn = strings.ReplaceAll(isbn, " ", "")

	switch fl.Param() {
	case "13":
		return isbn13Pattern.MatchString(isbn)
	case "10":
		return isbn10Pattern.MatchString(isbn)
	default:
		return isbn13Pattern.MatchString(isbn) || isbn10Pattern.MatchString(isbn)
	}
}
