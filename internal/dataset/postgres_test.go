package dataset

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

type fakeRows struct {
	fields []pgconn.FieldDescription
	values [][]any
	pos    int
	err    error
	closed bool
}

func newFakeRows(columns []string, values ...[]any) *fakeRows {
	fields := make([]pgconn.FieldDescription, len(columns))
	for i, c := range columns {
		fields[i] = pgconn.FieldDescription{Name: c}
	}
	return &fakeRows{fields: fields, values: values}
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Scan(...any) error                            { return errors.New("scan not supported") }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.values[r.pos-1], nil
}

// fakeQuerier answers SELECT * for the relations it knows, keyed by quoted name.
type fakeQuerier struct {
	relations map[string]*fakeRows
	queries   []string
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.queries = append(q.queries, sql)
	for rel, rows := range q.relations {
		quoted := pgx.Identifier{rel}.Sanitize()
		if sql == "SELECT * FROM "+quoted {
			return rows, nil
		}
	}
	return nil, fmt.Errorf("relation in %q does not exist", sql)
}

const pgPatient = "1d604da9-9a81-4ba9-80c2-de3375d59b40"

func TestLoadPostgres_UsesSchemaSpelling(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	start := time.Date(2020, 1, 1, 9, 0, 0, 0, cet)
	conds := newFakeRows([]string{"start", "stop", "patient", "description"},
		[]any{start, nil, [16]byte(uuid.MustParse(pgPatient)), "Hypertension"},
	)
	obs := newFakeRows([]string{"date", "patient", "description", "value", "type"},
		[]any{start, pgPatient, "Body temperature", "38.5", "numeric"},
	)
	q := &fakeQuerier{relations: map[string]*fakeRows{"Conditions": conds, "observations": obs}}

	load, missing := SelectTables([]string{"Conditions", "observations"})
	if len(missing) != 4 {
		t.Errorf("expected 4 missing tables, got %v", missing)
	}

	ds, err := newTestLoader().LoadPostgres(context.Background(), q, load)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.queries[0] != `SELECT * FROM "Conditions"` {
		t.Errorf("expected the schema's spelling in the query, got %s", q.queries[0])
	}
	if !conds.closed || !obs.closed {
		t.Error("expected rows to be closed")
	}

	ct, err := ds.Table("conditions")
	if err != nil {
		t.Fatalf("expected conditions keyed in lowercase: %v", err)
	}
	if ct.Name != "conditions" {
		t.Errorf("expected table name conditions, got %q", ct.Name)
	}
	records, skipped, err := Conditions(ct)
	if err != nil || skipped != 0 || len(records) != 1 {
		t.Fatalf("unexpected conditions: %v %d %v", records, skipped, err)
	}
	c := records[0]
	if c.Patient != pgPatient {
		t.Errorf("expected uuid rendered as text, got %q", c.Patient)
	}
	if !c.Start.Equal(start) || c.Start.Location() != time.UTC {
		t.Errorf("expected %v in UTC, got %v", start, c.Start)
	}
	if !c.Ongoing() {
		t.Error("expected NULL stop to read as ongoing")
	}

	ot, err := ds.Table("observations")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f, ok := ot.Rows[0].Get(ColValue).Float(); !ok || f != 38.5 {
		t.Errorf("expected numeric observation 38.5, got %v", ot.Rows[0].Get(ColValue))
	}
}

func TestLoadPostgres_NumericColumns(t *testing.T) {
	meds := newFakeRows([]string{"START", "DESCRIPTION", "BASE_COST", "DISPENSES"},
		[]any{time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), "Amoxicillin 250 MG", pgtype.Numeric{Int: big.NewInt(125), Exp: -1, Valid: true}, int64(3)},
		[]any{time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC), "Lisinopril 10 MG", pgtype.Numeric{}, nil},
	)
	q := &fakeQuerier{relations: map[string]*fakeRows{"medications": meds}}

	ds, err := newTestLoader().LoadPostgres(context.Background(), q, []string{"medications"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mt, _ := ds.Table("medications")

	if f, ok := mt.Rows[0].Get("BASE_COST").Float(); !ok || f != 12.5 {
		t.Errorf("expected BASE_COST 12.5, got %v", mt.Rows[0].Get("BASE_COST"))
	}
	if f, ok := mt.Rows[0].Get("DISPENSES").Float(); !ok || f != 3 {
		t.Errorf("expected DISPENSES 3, got %v", mt.Rows[0].Get("DISPENSES"))
	}
	if !mt.Rows[1].Get("BASE_COST").IsMissing() || !mt.Rows[1].Get("DISPENSES").IsMissing() {
		t.Errorf("expected NULLs to be missing, got %v", mt.Rows[1])
	}
}

func TestLoadPostgres_Errors(t *testing.T) {
	_, err := newTestLoader().LoadPostgres(context.Background(), &fakeQuerier{}, []string{"conditions"})
	if err == nil {
		t.Fatal("expected error for unknown relation")
	}

	broken := newFakeRows([]string{"START"})
	broken.err = errors.New("connection reset")
	q := &fakeQuerier{relations: map[string]*fakeRows{"conditions": broken}}
	if _, err := newTestLoader().LoadPostgres(context.Background(), q, []string{"conditions"}); err == nil {
		t.Fatal("expected rows error to surface")
	}
}

func TestRawString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"text", "Sinusitis", "Sinusitis"},
		{"uuid", [16]byte(uuid.MustParse(pgPatient)), pgPatient},
		{"numeric", pgtype.Numeric{Int: big.NewInt(125), Exp: -1, Valid: true}, "12.5"},
		{"null numeric", pgtype.Numeric{}, ""},
		{"int", int64(42), "42"},
	}
	for _, tt := range tests {
		if got := rawString(tt.in); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

func TestColumnName(t *testing.T) {
	tests := map[string]string{
		"id":                "Id",
		"ID":                "Id",
		"reasondescription": "REASONDESCRIPTION",
		"BASE_COST":         "BASE_COST",
	}
	for in, want := range tests {
		if got := columnName(in); got != want {
			t.Errorf("columnName(%q): expected %q, got %q", in, want, got)
		}
	}
}
