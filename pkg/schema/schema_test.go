// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeType(t *testing.T) {
	cases := map[string]string{
		"int":               "INTEGER",
		"INT":               "INTEGER",
		"bool":              "BOOLEAN",
		"varchar(255)":      "VARCHAR(255)",
		"VARCHAR( 255 )":    "VARCHAR( 255 )",
		"numeric(10,2)":     "NUMERIC(10,2)",
		"serial":            "INTEGER",
		"bigserial":         "BIGINT",
		"timestamptz":       "TIMESTAMP WITH TIME ZONE",
		"text":              "TEXT",
		"character varying": "VARCHAR",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeType(in), "input %q", in)
	}
}

func TestIsSerialAlias(t *testing.T) {
	assert.True(t, IsSerialAlias("serial"))
	assert.True(t, IsSerialAlias("SERIAL"))
	assert.True(t, IsSerialAlias("bigserial"))
	assert.False(t, IsSerialAlias("integer"))
}

func TestNormalizeDefault(t *testing.T) {
	cases := map[string]string{
		"'x'::text":           "'x'",
		"  'x' ":               "'x'",
		"NOW()":                "now()",
		"now( )":               "now()",
		"CURRENT_TIMESTAMP":    "CURRENT_TIMESTAMP",
		"0::numeric":           "0",
		"'a b'::character varying(10)": "'a b'",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeDefault(in), "input %q", in)
	}
}

func TestEqualTablesColumnOrderMatters(t *testing.T) {
	a := NewTable("t")
	a.AddColumn(&Column{Name: "a", Type: "INTEGER"})
	a.AddColumn(&Column{Name: "b", Type: "TEXT"})

	b := NewTable("t")
	b.AddColumn(&Column{Name: "b", Type: "TEXT"})
	b.AddColumn(&Column{Name: "a", Type: "INTEGER"})

	assert.False(t, EqualTables(a, b), "tables with different column order should not be equal")

	c := NewTable("t")
	c.AddColumn(&Column{Name: "a", Type: "INTEGER"})
	c.AddColumn(&Column{Name: "b", Type: "TEXT"})
	assert.True(t, EqualTables(a, c))
}

func TestSchemaEqualIgnoresTableOrder(t *testing.T) {
	s1 := New("public")
	s1.AddTable(NewTable("a"))
	s1.AddTable(NewTable("b"))

	s2 := New("public")
	s2.AddTable(NewTable("b"))
	s2.AddTable(NewTable("a"))

	assert.True(t, Equal(s1, s2))
}
