package store

import (
	"errors"

	"curator/internal/models"
)

var (
	ErrNotFound = models.ErrNotFound
	ErrConflict = models.ErrConflict
	// ErrDuplicate marks an insert whose ID is already present.
	ErrDuplicate = errors.New("store: duplicate resource")
)
