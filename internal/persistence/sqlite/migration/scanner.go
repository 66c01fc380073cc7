package migration

import (
	"crypto/sha256"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var migrationFilePattern = regexp.MustCompile(`^(\d+)_([a-zA-Z0-9_-]+)\.sql$`)

// Scanner reads migration files from a directory inside an fs.FS.
type Scanner struct {
	files fs.FS
	dir   string
}

// NewScanner creates a scanner rooted at dir within files.
func NewScanner(files fs.FS, dir string) *Scanner {
	if dir == "" {
		dir = "."
	}
	return &Scanner{files: files, dir: dir}
}

// ScanMigrations returns all migrations ordered by numeric version.
func (s *Scanner) ScanMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(s.files, s.dir)
	if err != nil {
		return nil, NewMigrationError("", s.dir, "read directory", err)
	}

	var migrations []Migration
	versions := make(map[string]string)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		matches := migrationFilePattern.FindStringSubmatch(entry.Name())
		if len(matches) != 3 {
			return nil, NewMigrationError("", entry.Name(), "validate filename",
				fmt.Errorf("%w: filename '%s' does not match pattern '{version}_{description}.sql'", ErrInvalidMigrationFile, entry.Name()))
		}
		version := normalizeVersion(matches[1])

		if existing, ok := versions[version]; ok {
			return nil, NewMigrationError(version, entry.Name(), "check duplicates",
				fmt.Errorf("%w: version %s found in both %s and %s", ErrDuplicateVersion, version, existing, entry.Name()))
		}
		versions[version] = entry.Name()

		filePath := path.Join(s.dir, entry.Name())
		content, err := fs.ReadFile(s.files, filePath)
		if err != nil {
			return nil, NewMigrationError(version, filePath, "read file", err)
		}
		sqlText := strings.TrimSpace(string(content))
		if sqlText == "" {
			return nil, NewMigrationError(version, filePath, "parse file", fmt.Errorf("%w: empty migration", ErrInvalidMigrationFile))
		}

		migrations = append(migrations, Migration{
			Version:     version,
			Description: strings.ReplaceAll(matches[2], "_", " "),
			SQL:         sqlText,
			FilePath:    filePath,
			Checksum:    fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		vi, _ := strconv.Atoi(migrations[i].Version)
		vj, _ := strconv.Atoi(migrations[j].Version)
		return vi < vj
	})
	return migrations, nil
}

// normalizeVersion zero-pads versions to three digits so "1" and "001" collide.
func normalizeVersion(raw string) string {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return raw
	}
	return fmt.Sprintf("%03d", n)
}
