package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/noah-isme/course-planner-api/internal/models"
	"github.com/noah-isme/course-planner-api/internal/planner"
)

// SnapshotLoader reads the stored rows of a term.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, term string) (*models.CatalogSnapshot, error)
}

// DBSource serves catalogues imported into the database.
type DBSource struct {
	Loader SnapshotLoader
}

// LoadTerm implements Source.
func (s DBSource) LoadTerm(ctx context.Context, term string) (*planner.Catalog, error) {
	snap, err := s.Loader.LoadSnapshot(ctx, term)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrTermNotFound, term)
		}
		return nil, err
	}
	ds, err := FromSnapshot(*snap)
	if err != nil {
		return nil, err
	}
	return ds.Catalog(), nil
}
