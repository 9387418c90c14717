// Package importer reads bulk job applications from spreadsheets exported by
// property HR systems.
package importer

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/gramv/onboardingsoftware-sub000/internal/hiring/models"
	dErrors "github.com/gramv/onboardingsoftware-sub000/pkg/domain-errors"
	"github.com/gramv/onboardingsoftware-sub000/pkg/email"
)

// MaxRows bounds a single import.
const MaxRows = 5000

// Row is one data row with its 1-based spreadsheet line number.
type Row struct {
	Line    int
	Request models.SubmitRequest
}

type columns struct {
	name, first, last, email, phone, position, department int
}

var headerAliases = map[string]string{
	"name":         "name",
	"full name":    "name",
	"first name":   "first",
	"firstname":    "first",
	"first_name":   "first",
	"last name":    "last",
	"lastname":     "last",
	"last_name":    "last",
	"email":        "email",
	"e-mail":       "email",
	"phone":        "phone",
	"phone number": "phone",
	"position":     "position",
	"job title":    "position",
	"department":   "department",
}

// Parse reads the first worksheet of an .xlsx or .xls file. The first row
// must be a header naming at least email, position and either name or first
// and last name columns. Blank rows are skipped.
func Parse(filename string, data []byte) ([]Row, error) {
	raw, err := readRows(filename, data)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "worksheet is empty")
	}
	cols, err := mapHeader(raw[0])
	if err != nil {
		return nil, err
	}
	if len(raw)-1 > MaxRows {
		return nil, dErrors.New(dErrors.CodeBadRequest, "spreadsheet has too many rows")
	}

	out := make([]Row, 0, len(raw)-1)
	for i, r := range raw[1:] {
		if isBlank(r) {
			continue
		}
		req := models.SubmitRequest{
			Email:      cell(r, cols.email),
			Phone:      cell(r, cols.phone),
			Position:   cell(r, cols.position),
			Department: cell(r, cols.department),
		}
		if cols.name >= 0 {
			req.FirstName, req.LastName = splitName(cell(r, cols.name))
		}
		if first := cell(r, cols.first); first != "" {
			req.FirstName = first
		}
		if last := cell(r, cols.last); last != "" {
			req.LastName = last
		}
		if req.FirstName == "" && req.LastName == "" {
			req.FirstName, req.LastName = email.NameFromAddress(req.Email)
		}
		out = append(out, Row{Line: i + 2, Request: req})
	}
	return out, nil
}

func readRows(filename string, data []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable xls workbook")
		}
		if wb.NumSheets() == 0 {
			return nil, dErrors.New(dErrors.CodeBadRequest, "no worksheet found")
		}
		return wb.ReadAllCells(MaxRows + 1), nil
	case ".xlsx":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable xlsx workbook")
		}
		defer func() { _ = f.Close() }()
		sheet := f.GetSheetName(0)
		if sheet == "" {
			return nil, dErrors.New(dErrors.CodeBadRequest, "no worksheet found")
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unreadable worksheet")
		}
		return rows, nil
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "spreadsheet must be .xlsx or .xls")
	}
}

func mapHeader(header []string) (columns, error) {
	cols := columns{name: -1, first: -1, last: -1, email: -1, phone: -1, position: -1, department: -1}
	for i, h := range header {
		switch headerAliases[strings.ToLower(strings.TrimSpace(h))] {
		case "name":
			cols.name = i
		case "first":
			cols.first = i
		case "last":
			cols.last = i
		case "email":
			cols.email = i
		case "phone":
			cols.phone = i
		case "position":
			cols.position = i
		case "department":
			cols.department = i
		}
	}

	missing := map[string]string{}
	if cols.email < 0 {
		missing["email"] = "column is required"
	}
	if cols.position < 0 {
		missing["position"] = "column is required"
	}
	if cols.name < 0 && (cols.first < 0 || cols.last < 0) {
		missing["name"] = "column is required"
	}
	if len(missing) > 0 {
		return cols, dErrors.WithFields(dErrors.CodeValidation, "spreadsheet header is incomplete", missing)
	}
	return cols, nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
