package db

import (
	"context"
	"testing"
)

func TestValidSchema(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"public", true},
		{"synthea_2024", true},
		{"_staging", true},
		{"", false},
		{"1abc", false},
		{"public; drop table x", false},
		{"a-b", false},
	}
	for _, tt := range tests {
		if got := ValidSchema(tt.name); got != tt.want {
			t.Errorf("ValidSchema(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNewPool_RejectsBadURL(t *testing.T) {
	_, err := NewPool(context.Background(), "::not a url::", "public", 1, 1)
	if err == nil {
		t.Fatal("expected error for malformed database url")
	}
}

func TestNewPool_RejectsBadSchema(t *testing.T) {
	_, err := NewPool(context.Background(), "postgres://u:p@localhost:5432/db", "bad schema", 1, 1)
	if err == nil {
		t.Fatal("expected error for invalid schema")
	}
}

func TestListTables_RejectsBadSchema(t *testing.T) {
	// the schema is checked before any query is issued, so no pool is needed
	_, err := ListTables(context.Background(), nil, "public; drop table conditions")
	if err == nil {
		t.Fatal("expected error for invalid schema")
	}
}
