package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"github.com/pressly/goose/v3"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

var sqlTemplate = template.Must(template.New("klinic.sql").Parse(`-- +goose Up
-- +goose StatementBegin
-- {{.CamelName}}: write the forward change here.
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- {{.CamelName}}: undo the forward change here.
-- +goose StatementEnd
`))

// CreateSQLMigration writes <dir>/<YYYYMMDDHHMMSS>_<slug>.sql through goose
// and returns its path. The slug is name lowercased with runs of other
// characters folded to "_".
func CreateSQLMigration(dir, name string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %q: %w", dir, err)
	}
	if err := goose.CreateWithTemplate(nil, dir, sqlTemplate, slug, "sql"); err != nil {
		return "", fmt.Errorf("create migration %q: %w", slug, err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*_"+slug+".sql"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("created migration %q not found in %s", slug, dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}
