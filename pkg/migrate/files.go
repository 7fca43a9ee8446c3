package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var (
	migrationFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)
	nameSanitizeRe  = regexp.MustCompile(`[^a-z0-9_]+`)
)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- rollback %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration named
// <dir>/<version>_<name>.sql. The version is the current UTC second, bumped
// past the newest migration already in dir.
func CreateSQLMigration(dir string, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	safe := sanitizeName(name)
	if safe == "" {
		return "", fmt.Errorf("name %q results in empty sanitized filename", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	files, err := migrationFiles(dir)
	if err != nil {
		return "", err
	}

	version := time.Now().UTC().Truncate(time.Second)
	if len(files) > 0 {
		latest, err := time.Parse(versionLayout, files[len(files)-1].version)
		if err == nil && !version.After(latest) {
			version = latest.Add(time.Second)
		}
	}

	fullpath := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", version.Format(versionLayout), safe))
	if err := os.WriteFile(fullpath, []byte(fmt.Sprintf(migrationTemplate, safe)), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", fullpath, err)
	}
	return fullpath, nil
}

// ValidateDir checks migration filenames, version uniqueness and the goose
// annotations of every .sql file in dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	files, err := migrationFiles(dir)
	if err != nil {
		return err
	}

	seen := map[string]string{}
	for _, f := range files {
		if prev, ok := seen[f.version]; ok {
			return fmt.Errorf("duplicate migration version %s in %q and %q", f.version, prev, f.name)
		}
		seen[f.version] = f.name

		b, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			return fmt.Errorf("read file %q: %w", f.name, err)
		}
		if err := checkAnnotations(f.name, string(b)); err != nil {
			return err
		}
	}
	return nil
}

type migrationFile struct {
	version string
	name    string
}

// migrationFiles lists the .sql files of dir sorted by version.
func migrationFiles(dir string) ([]migrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %q: %w", dir, err)
	}

	var files []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := migrationFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		files = append(files, migrationFile{version: m[1], name: e.Name()})
	}
	sort.SliceStable(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

func checkAnnotations(name, sql string) error {
	if !strings.Contains(sql, "-- +goose Up") {
		return fmt.Errorf("migration %q missing \"-- +goose Up\"", name)
	}
	if !strings.Contains(sql, "-- +goose Down") {
		return fmt.Errorf("migration %q missing \"-- +goose Down\"", name)
	}
	begins := strings.Count(sql, "-- +goose StatementBegin")
	ends := strings.Count(sql, "-- +goose StatementEnd")
	if begins != ends {
		return fmt.Errorf("migration %q has %d StatementBegin but %d StatementEnd", name, begins, ends)
	}
	return nil
}

func sanitizeName(name string) string {
	safe := strings.ToLower(strings.TrimSpace(name))
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = nameSanitizeRe.ReplaceAllString(safe, "_")
	return strings.Trim(safe, "_")
}
