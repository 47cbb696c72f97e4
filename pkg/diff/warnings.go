// SPDX-License-Identifier: Apache-2.0

package diff

// safeWidenings lists the type changes Postgres can perform in place without
// a table rewrite or risk of truncation. Keyed by "from
// type -> to type"; parameterized types (VARCHAR(n), NUMERIC(p,s)) are
// matched by base name only, since widening a parameter (e.g. VARCHAR(10)
// -> VARCHAR(50)) is always safe and checked separately.
var safeWidenings = map[string]map[string]bool{
	"SMALLINT": {"INTEGER": true, "BIGINT": true, "NUMERIC": true},
	"INTEGER":  {"BIGINT": true, "NUMERIC": true},
	"BIGINT":   {"NUMERIC": true},
	"REAL":     {"DOUBLE PRECISION": true},
	"VARCHAR":  {"TEXT": true},
	"CHAR":     {"VARCHAR": true, "TEXT": true},
}

// IsSafeWidening reports whether changing a column's type from -> to is a
// widening Postgres can do without data loss: a smaller numeric type to a
// larger one, CHAR/VARCHAR to TEXT, or the same type with a larger
// length/precision parameter (or, for CHAR/VARCHAR only, a dropped one).
func IsSafeWidening(from, to string) bool {
	fromBase, fromParams := splitTypeParams(from)
	toBase, toParams := splitTypeParams(to)

	if fromBase == toBase {
		return paramsWiden(fromBase, fromParams, toParams)
	}
	if widenTo, ok := safeWidenings[fromBase]; ok && widenTo[toBase] {
		return true
	}
	return false
}

// splitTypeParams separates a normalized type like "VARCHAR(255)" into its
// base name and parameter list text ("255"), or ("VARCHAR", "") if there's
// no parameter list.
func splitTypeParams(t string) (base, params string) {
	open := indexByte(t, '(')
	if open < 0 {
		return t, ""
	}
	close := len(t) - 1
	if close <= open || t[close] != ')' {
		return t, ""
	}
	return t[:open], t[open+1 : close]
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// paramsWiden compares a same-base-type parameter change. Only VARCHAR/CHAR
// length and NUMERIC precision/scale are understood; anything else is
// treated as not provably safe. For NUMERIC, both precision and scale must
// be non-decreasing — this also covers adding scale to an integer-only
// NUMERIC(p), e.g. NUMERIC(10) -> NUMERIC(10,2).
func paramsWiden(base, from, to string) bool {
	switch base {
	case "VARCHAR", "CHAR":
		if to == "" {
			return true // dropped the length cap entirely
		}
		fn, ok1 := parseInt(from)
		tn, ok2 := parseInt(to)
		return ok1 && ok2 && tn >= fn
	case "NUMERIC":
		fp, fs, ok1 := parseNumericParams(from)
		tp, ts, ok2 := parseNumericParams(to)
		return ok1 && ok2 && ts >= fs && tp >= fp
	}
	return false
}

func parseInt(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

func parseNumericParams(s string) (precision, scale int, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			p, ok1 := parseInt(s[:i])
			sc, ok2 := parseInt(s[i+1:])
			return p, sc, ok1 && ok2
		}
	}
	p, ok1 := parseInt(s)
	return p, 0, ok1
}
