package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/biso/functions/internal/docstore"
	"github.com/biso/functions/internal/domain"
)

// GetDepartments mirrors the ERP department list into the document store.
// Departments already stored are updated in place.
func GetDepartments(ctx context.Context, d *Deps, _ Request) (any, error) {
	session, err := d.ERP.Login(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := session.Departments(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Department, 0, len(remote))
	for _, dep := range remote {
		doc := domain.Department{
			ID:     dep.ID,
			Name:   dep.Name,
			Campus: d.Catalog.CampusOf(dep.ID).Name,
		}
		id := strconv.Itoa(dep.ID)
		err := d.Store.CreateDocument(ctx, domain.DatabaseERP, domain.CollectionDepartments, id, doc)
		if docstore.IsConflict(err) {
			err = d.Store.UpdateDocument(ctx, domain.DatabaseERP, domain.CollectionDepartments, id, doc)
		}
		if err != nil {
			return nil, fmt.Errorf("store department %d: %w", dep.ID, err)
		}
		out = append(out, doc)
	}
	d.Log.InfoContext(ctx, "departments stored", "count", len(out))
	return out, nil
}
