package dataset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ehr/explorer/internal/table"
)

// DefaultTables are the Synthea tables the analyses read.
var DefaultTables = []string{"conditions", "encounters", "medications", "observations", "patients", "procedures"}

// SelectTables picks the DefaultTables present in available, matching names
// case-insensitively. load holds the relation names as the schema spells them;
// an exact lowercase match wins over other spellings. missing lists the default
// tables the source does not have.
func SelectTables(available []string) (load, missing []string) {
	have := make(map[string]string, len(available))
	for _, name := range available {
		key := strings.ToLower(name)
		if prev, ok := have[key]; ok && prev == key {
			continue
		}
		have[key] = name
	}
	for _, name := range DefaultTables {
		if rel, ok := have[name]; ok {
			load = append(load, rel)
		} else {
			missing = append(missing, name)
		}
	}
	return load, missing
}

// Querier is the subset of pgxpool.Pool the loader needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// LoadPostgres reads the named relations with SELECT * and types every cell the
// same way the CSV loader does. Tables are keyed by their lowercase name, so
// "Conditions" is loaded as conditions. Column names are upper-cased to match
// the CSV export, except Id.
func (l *Loader) LoadPostgres(ctx context.Context, q Querier, names []string) (*Dataset, error) {
	if len(names) == 0 {
		names = DefaultTables
	}
	ds := New("postgres")
	for _, rel := range names {
		name := strings.ToLower(rel)
		t, err := l.loadQuery(ctx, q, rel, name)
		if err != nil {
			return nil, fmt.Errorf("load table %s: %w", rel, err)
		}
		ds.tables[name] = t
	}
	l.logger.Info().Int("tables", len(ds.tables)).Msg("dataset loaded from postgres")
	return ds, nil
}

func (l *Loader) loadQuery(ctx context.Context, q Querier, rel, name string) (*table.Table, error) {
	sql := "SELECT * FROM " + pgx.Identifier{rel}.Sanitize()
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, fd := range fields {
		header[i] = columnName(fd.Name)
	}

	t := table.New(name, header...)
	invalid := make(map[string]int)
	record := make([]string, len(header))
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		// Timestamps arrive typed; everything else goes through the same
		// coercion as CSV text so both sources agree.
		times := make(map[int]time.Time)
		for i, v := range values {
			if ts, ok := v.(time.Time); ok {
				times[i] = ts
				record[i] = ""
				continue
			}
			record[i] = rawString(v)
		}

		row, bad := coerceRecord(name, header, record)
		for i, ts := range times {
			if v := table.Time(ts.UTC()); !v.IsMissing() {
				row[header[i]] = v
			}
		}
		for _, c := range bad {
			invalid[c]++
		}
		t.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	l.logInvalid(name, invalid)
	return t, nil
}

func columnName(name string) string {
	if strings.EqualFold(name, ColID) {
		return ColID
	}
	return strings.ToUpper(name)
}

func rawString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return ""
		}
		return fmt.Sprint(f.Float64)
	default:
		return fmt.Sprint(x)
	}
}
