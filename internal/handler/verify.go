package handler

import (
	"context"
	"fmt"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/docstore"
	"github.com/biso/functions/internal/domain"
	"github.com/biso/functions/internal/membership"
)

// VerifyResult is the membership a student currently holds.
type VerifyResult struct {
	Membership domain.Membership `json:"membership"`
}

// VerifyMembership finds the newest active membership whose name matches
// one of the student's customer categories. The body is the s-number.
func VerifyMembership(ctx context.Context, d *Deps, req Request) (any, error) {
	snumber, err := req.Text()
	if err != nil {
		return nil, err
	}
	if snumber == "" {
		return nil, apperr.Validation("missing required parameters: snumber")
	}
	studentID, err := studentNumber(snumber)
	if err != nil {
		return nil, err
	}
	log := d.Log.With("student_id", studentID)

	var active []domain.Membership
	err = d.Store.ListDocuments(ctx, domain.DatabaseApp, domain.CollectionMemberships, []docstore.Query{
		docstore.Equal("status", true),
		docstore.Select("$id", "membership_id", "name", "price", "category", "status", "expiryDate"),
	}, &active)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	if len(active) == 0 {
		return nil, apperr.NotFound("no active memberships found")
	}
	log.InfoContext(ctx, "active memberships", "count", len(active))

	session, err := d.ERP.Login(ctx)
	if err != nil {
		return nil, err
	}
	categories, err := session.CustomerCategories(ctx, studentID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}

	m, ok := membership.Latest(active, names)
	if !ok {
		log.InfoContext(ctx, "no matching membership", "categories", names)
		return nil, apperr.NotFound("no active membership found for this user")
	}
	log.InfoContext(ctx, "membership found", "membership", m.Name)
	return VerifyResult{Membership: m}, nil
}
