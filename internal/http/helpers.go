package http

import (
	"errors"

	"conto/internal/store"
)

func isPersistErr(err error) bool {
	return errors.Is(err, store.ErrPersist)
}
