// SPDX-License-Identifier: Apache-2.0

// Package store persists migrations as versioned, checksummed files on disk
//: `<version>_<name>.sql`, written atomically and never mutated
// once committed.
package store

import (
	"fmt"
	"regexp"
)

// MaxNameLength bounds a migration's descriptive name, matching the
// filesystem-friendly limit most tools in this space use.
const MaxNameLength = 63

// VersionWidth is the zero-padded digit width of a migration's version
// prefix, giving up to 10^VersionWidth migrations before the lexical and
// numeric orderings of filenames diverge.
const VersionWidth = 4

var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateName reports whether name is a valid migration name: lowercase
// snake_case, starting with a letter, at most MaxNameLength bytes.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("migration name must not be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("migration name %q exceeds %d characters", name, MaxNameLength)
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("migration name %q must be lowercase snake_case", name)
	}
	return nil
}

// FileName returns the `<version>_<name>.sql` filename for a migration.
func FileName(version int, name string) string {
	return fmt.Sprintf("%0*d_%s.sql", VersionWidth, version, name)
}

// DownFileName returns the optional down-migration filename paired with
// FileName.
func DownFileName(version int, name string) string {
	return fmt.Sprintf("%0*d_%s.down.sql", VersionWidth, version, name)
}

var fileNameRe = regexp.MustCompile(`^(\d+)_([a-z][a-z0-9_]*)\.sql$`)

// ParseFileName extracts the version and name from a migration filename, or
// reports ok=false if name doesn't match the expected convention (e.g. it's
// a `.down.sql` file, which ParseFileName deliberately rejects).
func ParseFileName(fileName string) (version int, name string, ok bool) {
	m := fileNameRe.FindStringSubmatch(fileName)
	if m == nil {
		return 0, "", false
	}
	for _, c := range m[1] {
		version = version*10 + int(c-'0')
	}
	return version, m[2], true
}
