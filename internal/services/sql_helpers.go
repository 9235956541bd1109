package services

import (
	"errors"

	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// rowScanner покрывает *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// isUniqueViolation проверяет нарушение уникальности. Пустой constraint - любое.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

func normalizePage(limit, offset, def int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = def
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
