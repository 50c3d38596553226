// Package migrations embeds the SQL schema so binaries and tests apply the same files.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Up applies every *.up.sql file in lexical order. Statements are idempotent.
func Up(ctx context.Context, db *sql.DB) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("Up: read dir: %w", err)
	}

	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, f := range upFiles {
		content, err := fs.ReadFile(files, f)
		if err != nil {
			return nil, fmt.Errorf("Up: read %s: %w", f, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return nil, fmt.Errorf("Up: execute %s: %w", f, err)
		}
	}

	return upFiles, nil
}
