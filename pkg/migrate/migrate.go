// Package migrate wraps goose for the SQL migrations under migrations/.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

func provider(db *sql.DB, dir string) (*goose.Provider, error) {
	switch {
	case db == nil:
		return nil, errors.New("db is required")
	case dir == "":
		return nil, errors.New("dir is required")
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("goose provider for %s: %w", dir, err)
	}
	return p, nil
}

// Run executes up, down, redo or status and reports what moved to out.
func Run(ctx context.Context, db *sql.DB, dir, command string, out io.Writer) error {
	p, err := provider(db, dir)
	if err != nil {
		return err
	}
	if out == nil {
		out = io.Discard
	}

	var results []*goose.MigrationResult
	switch command {
	case "up":
		results, err = p.Up(ctx)
	case "down":
		var res *goose.MigrationResult
		res, err = p.Down(ctx)
		results = append(results, res)
	case "redo":
		results, err = redo(ctx, p)
	case "status":
		return printStatus(ctx, p, out)
	default:
		return fmt.Errorf("unknown goose command %q", command)
	}
	printResults(out, results)
	if err != nil {
		return fmt.Errorf("goose %s: %w", command, err)
	}
	return nil
}

func redo(ctx context.Context, p *goose.Provider) ([]*goose.MigrationResult, error) {
	down, err := p.Down(ctx)
	if err != nil {
		return []*goose.MigrationResult{down}, err
	}
	up, err := p.UpByOne(ctx)
	return []*goose.MigrationResult{down, up}, err
}

// MigrateToVersion moves the schema up or down until it sits at target.
func MigrateToVersion(ctx context.Context, db *sql.DB, dir, target string, out io.Writer) error {
	version, err := ParseVersion(target)
	if err != nil {
		return err
	}
	p, err := provider(db, dir)
	if err != nil {
		return err
	}
	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == version:
		return nil
	case current < version:
		results, err = p.UpTo(ctx, version)
	default:
		results, err = p.DownTo(ctx, version)
	}
	if out != nil {
		printResults(out, results)
	}
	if err != nil {
		return fmt.Errorf("goose migrate %d -> %d: %w", current, version, err)
	}
	return nil
}

// ParseVersion validates a YYYYMMDDHHMMSS migration version.
func ParseVersion(value string) (int64, error) {
	v, err := strconv.ParseInt(value, 10, 64)
	if len(value) != 14 || err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", value)
	}
	return v, nil
}

func printResults(out io.Writer, results []*goose.MigrationResult) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		fmt.Fprintf(out, "%-4s %d %s (%s)\n", r.Direction, r.Source.Version, r.Source.Path, r.Duration)
	}
}

func printStatus(ctx context.Context, p *goose.Provider, out io.Writer) error {
	statuses, err := p.Status(ctx)
	if err != nil {
		return fmt.Errorf("goose status: %w", err)
	}
	for _, s := range statuses {
		applied := "pending"
		if s.State == goose.StateApplied {
			applied = s.AppliedAt.UTC().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(out, "%-19s %d %s\n", applied, s.Source.Version, s.Source.Path)
	}
	return nil
}
