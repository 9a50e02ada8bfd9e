package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ehr/explorer/internal/table"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrMissingColumn = errors.New("missing column")
)

// Dataset holds the loaded tables keyed by name. Tables are treated as read-only
// once loaded; analyses derive copies.
type Dataset struct {
	Source string
	tables map[string]*table.Table
}

// Summary describes one loaded table.
type Summary struct {
	Name    string   `json:"name"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// New builds a dataset from already materialized tables.
func New(source string, tables ...*table.Table) *Dataset {
	ds := &Dataset{Source: source, tables: make(map[string]*table.Table, len(tables))}
	for _, t := range tables {
		ds.tables[t.Name] = t
	}
	return ds
}

// Table returns the named table.
func (d *Dataset) Table(name string) (*table.Table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return t, nil
}

// Names returns the table names in lexical order.
func (d *Dataset) Names() []string {
	names := make([]string, 0, len(d.tables))
	for n := range d.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (d *Dataset) Summaries() []Summary {
	out := make([]Summary, 0, len(d.tables))
	for _, n := range d.Names() {
		t := d.tables[n]
		out = append(out, Summary{Name: n, Rows: t.Len(), Columns: t.Columns})
	}
	return out
}

// RequireColumns checks that t carries every listed column.
func RequireColumns(t *table.Table, cols ...string) error {
	for _, c := range cols {
		if !t.HasColumn(c) {
			return fmt.Errorf("%w: %s.%s", ErrMissingColumn, t.Name, c)
		}
	}
	return nil
}

// Loader reads tables from a directory of CSV files or from Postgres.
type Loader struct {
	logger zerolog.Logger
}

func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadDir reads every *.csv file in dir. The file basename without extension
// becomes the table name.
func (l *Loader) LoadDir(dir string) (*Dataset, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open data dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open data dir: %s is not a directory", dir)
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list csv files: %w", err)
	}
	sort.Strings(paths)

	ds := New(dir)
	for _, p := range paths {
		t, err := l.LoadFile(p)
		if err != nil {
			return nil, err
		}
		ds.tables[t.Name] = t
	}

	l.logger.Info().Str("dir", dir).Int("tables", len(ds.tables)).Msg("dataset loaded")
	return ds, nil
}

// LoadFile reads a single CSV file into a table.
func (l *Loader) LoadFile(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	t, err := l.read(name, f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

func (l *Loader) read(name string, r io.Reader) (*table.Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return table.New(name), nil
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	header = append([]string(nil), header...)
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	t := table.New(name, header...)
	invalid := make(map[string]int)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row, bad := coerceRecord(name, header, rec)
		for _, c := range bad {
			invalid[c]++
		}
		t.Append(row)
	}

	l.logInvalid(name, invalid)
	l.logger.Debug().Str("table", name).Int("rows", t.Len()).Msg("table loaded")
	return t, nil
}

func (l *Loader) logInvalid(name string, invalid map[string]int) {
	for col, n := range invalid {
		l.logger.Warn().
			Str("table", name).
			Str("column", col).
			Int("cells", n).
			Msg("unparseable cells stored as missing")
	}
}
