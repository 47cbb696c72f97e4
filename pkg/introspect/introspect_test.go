// SPDX-License-Identifier: Apache-2.0

package introspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCheckExpr(t *testing.T) {
	cases := map[string]string{
		"CHECK ((price > (0)::numeric))": "price > (0)::numeric",
		"CHECK (status IS NOT NULL)":      "status IS NOT NULL",
	}
	for in, want := range cases {
		assert.Equal(t, want, extractCheckExpr(in), "input %q", in)
	}
}

func TestTrimOuterParens(t *testing.T) {
	assert.Equal(t, "a > b", trimOuterParens("(a > b)"))
	assert.Equal(t, "a > b", trimOuterParens("((a > b))"))
	assert.Equal(t, "(a) or (b)", trimOuterParens("(a) or (b)"))
}

func TestFKActionNames(t *testing.T) {
	assert.Equal(t, "CASCADE", fkActionNames['c'])
	assert.Equal(t, "SET NULL", fkActionNames['n'])
	assert.Equal(t, "NO ACTION", fkActionNames['a'])
}
