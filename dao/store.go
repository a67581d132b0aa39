// Package dao holds the gorm models and the store types backing the workflow
// interfaces in pkg/provision, pkg/invitation and pkg/transfer.
package dao

import (
	"errors"

	"gorm.io/gorm"

	"github.com/loomworks/loomspace/pkg/apperr"
)

// Store is the gorm-backed implementation of every workflow store interface.
// It is constructed once in main and injected; tests substitute in-memory
// fakes per interface.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the raw handle for the plain CRUD queries the HTTP handlers own
// themselves.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// translate maps gorm sentinels onto the shared error taxonomy.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.ErrConflict
	default:
		return err
	}
}
