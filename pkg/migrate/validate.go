package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"
)

var migrationName = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

// ValidateDir lints a migrations directory offline: timestamped snake_case
// names, unique versions, both goose sections present and balanced
// StatementBegin/End pairs.
func ValidateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return validateFS(os.DirFS(dir))
}

func validateFS(fsys fs.FS) error {
	if _, err := fs.Stat(fsys, "."); err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	files, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return err
	}

	versions := make(map[string]string, len(files))
	for _, name := range files {
		m := migrationName.FindStringSubmatch(path.Base(name))
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", name)
		}
		if prev, dup := versions[m[1]]; dup {
			return fmt.Errorf("duplicate migration version %s in %q and %q", m[1], prev, name)
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if err := lintMigration(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func lintMigration(sql string) error {
	for _, section := range []string{"-- +goose Up", "-- +goose Down"} {
		if !strings.Contains(sql, section) {
			return fmt.Errorf("missing %q", section)
		}
	}
	if strings.Count(sql, "-- +goose StatementBegin") != strings.Count(sql, "-- +goose StatementEnd") {
		return errors.New("unbalanced StatementBegin/StatementEnd")
	}
	return nil
}
