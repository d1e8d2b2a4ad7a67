// internal/importer/csv.go

// Package importer turns a delimited student table into import candidates.
// A file is accepted whole or not at all.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	apperrors "exam-queue/internal/common/errors"
	"exam-queue/internal/models"
)

var ErrInvalidImport = errors.New("invalid import file")

const (
	colID          = "id"
	colName        = "name"
	colSpecialty   = "specialty"
	colCommitteeID = "committeeid"
)

var requiredColumns = []string{colID, colName, colSpecialty, colCommitteeID}

// Options carries what the parser checks rows against.
type Options struct {
	// KnownIDs are ids already in use; a row reusing one is rejected.
	KnownIDs map[int]bool
	// Committees, when non-nil, restricts committeeId to these ids.
	Committees map[int]bool
	// Comma is the field delimiter; zero means ','.
	Comma rune
}

// Parse reads a header row naming the columns id, name, specialty and
// committeeId in any order and case, followed by one student per row.
// The first invalid row aborts the whole import with a line-numbered error.
func Parse(r io.Reader, opts Options) ([]models.Student, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}

	header, err := reader.Read()
	if err == io.EOF {
		return nil, invalid(0, "file is empty")
	}
	if err != nil {
		return nil, invalid(parseErrorLine(err), err.Error())
	}
	columns, err := indexColumns(header)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]int)
	var out []models.Student
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, invalid(parseErrorLine(err), err.Error())
		}
		line, _ := reader.FieldPos(0)

		student, err := parseRow(record, columns, line)
		if err != nil {
			return nil, err
		}
		if opts.KnownIDs[student.ID] {
			return nil, invalid(line, fmt.Sprintf("student id %d already exists", student.ID))
		}
		if first, dup := seen[student.ID]; dup {
			return nil, invalid(line, fmt.Sprintf("student id %d repeats line %d", student.ID, first))
		}
		if opts.Committees != nil && !opts.Committees[student.CommitteeID] {
			return nil, invalid(line, fmt.Sprintf("committee %d does not exist", student.CommitteeID))
		}
		seen[student.ID] = line
		out = append(out, student)
	}

	if len(out) == 0 {
		return nil, invalid(0, "no student rows")
	}
	return out, nil
}

func indexColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := columns[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, invalid(1, "missing columns: "+strings.Join(missing, ", "))
	}
	return columns, nil
}

func parseRow(record []string, columns map[string]int, line int) (models.Student, error) {
	field := func(name string) string {
		i := columns[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id, err := strconv.Atoi(field(colID))
	if err != nil || id <= 0 {
		return models.Student{}, invalid(line, fmt.Sprintf("id %q is not a positive number", field(colID)))
	}
	committeeID, err := strconv.Atoi(field(colCommitteeID))
	if err != nil {
		return models.Student{}, invalid(line, fmt.Sprintf("committeeId %q is not a number", field(colCommitteeID)))
	}
	name := field(colName)
	if name == "" {
		return models.Student{}, invalid(line, "name is required")
	}

	return models.Student{
		ID:          id,
		Name:        name,
		Specialty:   field(colSpecialty),
		CommitteeID: committeeID,
		Status:      models.StatusWaiting,
	}, nil
}

func parseErrorLine(err error) int {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return pe.StartLine
	}
	return 0
}

func invalid(line int, details string) error {
	return fmt.Errorf("%w: %w", ErrInvalidImport, apperrors.NewImportValidationError(line, details))
}
