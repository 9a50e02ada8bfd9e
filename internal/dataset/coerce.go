package dataset

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/ehr/explorer/internal/table"
)

// Column names of the Synthea CSV export that the analyses rely on.
const (
	ColPatient           = "PATIENT"
	ColEncounter         = "ENCOUNTER"
	ColStart             = "START"
	ColStop              = "STOP"
	ColDate              = "DATE"
	ColCode              = "CODE"
	ColDescription       = "DESCRIPTION"
	ColReasonDescription = "REASONDESCRIPTION"
	ColValue             = "VALUE"
	ColUnits             = "UNITS"
	ColType              = "TYPE"
	ColID                = "Id"
)

// Observation TYPE tags.
const (
	ObservationNumeric = "numeric"
	ObservationText    = "text"
)

var timeColumns = map[string]bool{
	ColStart:    true,
	ColStop:     true,
	ColDate:     true,
	"BIRTHDATE": true,
	"DEATHDATE": true,
}

var numericColumns = map[string]bool{
	"BASE_COST":           true,
	"PAYER_COVERAGE":      true,
	"DISPENSES":           true,
	"TOTALCOST":           true,
	"HEALTHCARE_EXPENSES": true,
	"HEALTHCARE_COVERAGE": true,
	"BASE_ENCOUNTER_COST": true,
	"TOTAL_CLAIM_COST":    true,
	"LAT":                 true,
	"LON":                 true,
	"INCOME":              true,
}

// coerceCell turns one raw cell into a typed Value. valueType is the row's TYPE
// cell and is only consulted for the observations VALUE column. ok is false when
// a non-empty cell could not be parsed for its column. Unreadable times and
// observation values keep their raw Text so they stay distinct from an empty
// cell; unreadable numerics become Missing.
func coerceCell(tableName, column, raw, valueType string) (v table.Value, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return table.Missing(), true
	}

	switch {
	case timeColumns[column]:
		ts, err := parseTime(raw)
		if err != nil {
			return table.Text(raw), false
		}
		return table.Time(ts), true

	case numericColumns[column]:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return table.Missing(), false
		}
		return table.Number(f), true

	case tableName == "observations" && column == ColValue:
		if valueType != ObservationNumeric {
			return table.Text(raw), true
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			// keep the reading, just not as a number
			return table.Text(raw), false
		}
		return table.Number(f), true
	}

	return table.Text(raw), true
}

// parseTime accepts the date and datetime layouts found in Synthea exports.
// Values without a zone are read as UTC.
func parseTime(raw string) (time.Time, error) {
	ts, err := dateparse.ParseIn(raw, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

// coerceRecord types a full CSV record against its header.
func coerceRecord(tableName string, header, record []string) (table.Row, []string) {
	row := make(table.Row, len(header))
	valueType := ""
	if tableName == "observations" {
		for i, h := range header {
			if h == ColType && i < len(record) {
				valueType = strings.TrimSpace(record[i])
			}
		}
	}

	var bad []string
	for i, col := range header {
		raw := ""
		if i < len(record) {
			raw = record[i]
		}
		v, ok := coerceCell(tableName, col, raw, valueType)
		if !ok {
			bad = append(bad, col)
		}
		if !v.IsMissing() {
			row[col] = v
		}
	}
	return row, bad
}
