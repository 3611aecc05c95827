package handler

import (
	"context"
	"fmt"

	"github.com/biso/functions/internal/docstore"
	"github.com/biso/functions/internal/domain"
)

// CreateUserDoc creates the profile document of a newly registered account.
// The account arrives either as the body or wrapped in "data", the shape of
// the store's account events. An existing profile is returned unchanged.
func CreateUserDoc(ctx context.Context, d *Deps, req Request) (any, error) {
	type account struct {
		ID    string `json:"$id"`
		Email string `json:"email"`
	}
	var r struct {
		account
		Data *account `json:"data"`
	}
	if err := req.Decode(&r); err != nil {
		return nil, err
	}
	acc := r.account
	if r.Data != nil {
		acc = *r.Data
	}
	if err := missing(required("$id", acc.ID != ""), required("email", acc.Email != "")); err != nil {
		return nil, err
	}

	err := d.Store.CreateDocument(ctx, domain.DatabaseApp, domain.CollectionUser, acc.ID, map[string]any{"email": acc.Email})
	switch {
	case docstore.IsConflict(err):
		d.Log.InfoContext(ctx, "user document exists", "user_id", acc.ID)
	case err != nil:
		return nil, fmt.Errorf("create user document: %w", err)
	default:
		d.Log.InfoContext(ctx, "user document created", "user_id", acc.ID)
	}

	var u domain.User
	if err := d.Store.GetDocument(ctx, domain.DatabaseApp, domain.CollectionUser, acc.ID, &u); err != nil {
		return nil, fmt.Errorf("get user document: %w", err)
	}
	return map[string]any{"user": u}, nil
}
