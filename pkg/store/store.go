// SPDX-License-Identifier: Apache-2.0

package store

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// Migration is one migration file as read from disk: its version, name,
// SQL content, and the checksum computed over that content.
type Migration struct {
	Version  int
	Name     string
	FileName string
	SQL      string
	Checksum string
}

// Warning reports a migrations-directory entry LoadAll skipped rather than
// failed on.
type Warning struct {
	FileName string
	Reason   string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.FileName, w.Reason)
}

// Store persists and enumerates migration files under a single directory.
type Store struct {
	fs  afero.Fs
	dir string
}

// New returns a Store rooted at dir on fs. Production callers pass
// afero.NewOsFs(); tests pass afero.NewMemMapFs() to avoid touching disk.
func New(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// NextVersion returns the version number one past the highest currently on
// disk, or 1 if the store is empty.
func (s *Store) NextVersion() (int, error) {
	migrations, _, err := s.LoadAll()
	if err != nil {
		return 0, err
	}
	max := 0
	for _, m := range migrations {
		if m.Version > max {
			max = m.Version
		}
	}
	return max + 1, nil
}

// Create writes a new migration file atomically (write to a temp file,
// fsync, rename) and returns it: callers never observe a Migration that
// doesn't yet exist on disk.
func (s *Store) Create(name string, sql string) (*Migration, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	version, err := s.NextVersion()
	if err != nil {
		return nil, err
	}

	fileName := FileName(version, name)
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create migrations dir: %w", err)
	}
	if err := atomicWriteFile(s.fs, filepath.Join(s.dir, fileName), []byte(sql)); err != nil {
		return nil, fmt.Errorf("store: write %s: %w", fileName, err)
	}

	return &Migration{
		Version:  version,
		Name:     name,
		FileName: fileName,
		SQL:      sql,
		Checksum: Checksum([]byte(sql)),
	}, nil
}

// WithDownStub additionally writes an empty `<version>_<name>.down.sql` file
// alongside a migration just created, seeding strict-mode rollback with a
// file the author is expected to fill in.
func (s *Store) WithDownStub(m *Migration) error {
	downName := DownFileName(m.Version, m.Name)
	path := filepath.Join(s.dir, downName)
	if exists, err := afero.Exists(s.fs, path); err != nil {
		return err
	} else if exists {
		return nil
	}
	return atomicWriteFile(s.fs, path, []byte("-- down migration for "+m.FileName+"\n"))
}

// LoadDown reads the down-migration file for a migration, if one exists.
func (s *Store) LoadDown(m *Migration) (string, bool, error) {
	path := filepath.Join(s.dir, DownFileName(m.Version, m.Name))
	exists, err := afero.Exists(s.fs, path)
	if err != nil || !exists {
		return "", false, err
	}
	content, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", false, err
	}
	return string(content), true, nil
}

// LoadAll reads every migration file in the store, sorted by version
// ascending. An entry that doesn't match the naming convention produces a
// Warning and is skipped rather than failing the whole load: a typo in one
// migration's filename shouldn't block enumerating the rest.
func (s *Store) LoadAll() ([]*Migration, []Warning, error) {
	exists, err := afero.DirExists(s.fs, s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("store: stat migrations dir: %w", err)
	}
	if !exists {
		return nil, nil, nil
	}

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("store: read migrations dir: %w", err)
	}

	var migrations []*Migration
	var warnings []Warning
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if isDownFile(name) {
			continue
		}
		version, migName, ok := ParseFileName(name)
		if !ok {
			warnings = append(warnings, Warning{FileName: name, Reason: "does not match <version>_<name>.sql"})
			continue
		}
		content, err := afero.ReadFile(s.fs, filepath.Join(s.dir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("store: read %s: %w", name, err)
		}
		migrations = append(migrations, &Migration{
			Version:  version,
			Name:     migName,
			FileName: name,
			SQL:      string(content),
			Checksum: Checksum(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool { return migrations[i].Version < migrations[j].Version })
	return migrations, warnings, nil
}

func isDownFile(name string) bool {
	return len(name) > len(".down.sql") && name[len(name)-len(".down.sql"):] == ".down.sql"
}

// atomicWriteFile writes data to path by writing to a temp file in the same
// directory, syncing it, then renaming over the destination:
// a reader never observes a partially written migration file.
func atomicWriteFile(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(fs, dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return err
	}
	return fs.Rename(tmpName, path)
}
