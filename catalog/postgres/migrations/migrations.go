// Package migrations contains the catalog's database migrations.
//
// Applied with github.com/remind101/migrate; see catalog/postgres's own
// initialization for how the migrator is invoked.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/remind101/migrate"
)

// Table is the name of the table remind101/migrate uses to track applied
// migrations.
const Table = "chantal_migrations"

// Migrations holds every migration the catalog schema needs, in order.
var Migrations []migrate.Migration

func init() {
	Migrations = loadMigrations(".")
}

//go:embed */*.sql
var sys embed.FS

func loadMigrations(root string) []migrate.Migration {
	ents, err := fs.ReadDir(sys, root)
	if err != nil {
		panic(fmt.Errorf("programmer error: unable to read embedded migrations: %w", err))
	}
	sort.Slice(ents, func(i, j int) bool { return ents[i].Name() < ents[j].Name() })

	ms := make([]migrate.Migration, 0, len(ents))
	id := 1
	for _, ent := range ents {
		if !ent.IsDir() {
			continue
		}
		dir := ent.Name()
		files, err := fs.ReadDir(sys, dir)
		if err != nil {
			panic(fmt.Errorf("programmer error: unable to read migration dir %q: %w", dir, err))
		}
		for _, f := range files {
			if path.Ext(f.Name()) != ".sql" || !f.Type().IsRegular() {
				continue
			}
			p := path.Join(dir, f.Name())
			ms = append(ms, migrate.Migration{
				ID: id,
				Up: func(tx *sql.Tx) error {
					raw, err := sys.Open(p)
					if err != nil {
						return fmt.Errorf("opening migration %q: %w", p, err)
					}
					defer raw.Close()
					var b strings.Builder
					if _, err := io.Copy(&b, raw); err != nil {
						return fmt.Errorf("reading migration %q: %w", p, err)
					}
					if _, err := tx.Exec(b.String()); err != nil {
						return fmt.Errorf("executing migration %q: %w", p, err)
					}
					return nil
				},
			})
			id++
		}
	}
	return ms
}
