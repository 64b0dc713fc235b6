package common

import (
	"errors"

	"github.com/lib/pq"
)

// IsUniqueViolation распознаёт нарушение уникального ограничения Postgres.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
