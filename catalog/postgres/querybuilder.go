package postgres

import (
	"github.com/doug-martin/goqu/v8"
	_ "github.com/doug-martin/goqu/v8/dialect/postgres"
)

// dialect is the package-level goqu.Dialect shared by every query-building
// helper in this package.
var dialect = goqu.Dialect("postgres")

// liveExp is the condition that selects a repository's current live set.
func liveExp(repositoryID string) goqu.Expression {
	return goqu.And(
		goqu.Ex{"repository_id": repositoryID},
		goqu.Ex{"is_live": true},
	)
}
