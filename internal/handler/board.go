package handler

import (
	"context"
	"fmt"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/directory"
	"github.com/biso/functions/internal/docstore"
	"github.com/biso/functions/internal/domain"
)

// BoardResult is a department with the directory users who belong to it.
type BoardResult struct {
	Success    bool             `json:"success"`
	Department map[string]any   `json:"department"`
	Users      []directory.User `json:"users"`
	Count      int              `json:"count"`
}

// GetBoardMembers lists the directory users of a department. The
// department's name is matched against the directory with fallbacks for
// names that differ between the two systems.
func GetBoardMembers(ctx context.Context, d *Deps, req Request) (any, error) {
	var r struct {
		Campus       string `json:"campus"`
		DepartmentID string `json:"departmentId"`
	}
	if err := req.Decode(&r); err != nil {
		return nil, err
	}
	if err := missing(
		required("campus", r.Campus != ""),
		required("departmentId", r.DepartmentID != ""),
	); err != nil {
		return nil, err
	}

	var department map[string]any
	err := d.Store.GetDocument(ctx, domain.DatabaseApp, domain.CollectionDepartments, r.DepartmentID, &department)
	if docstore.IsNotFound(err) {
		return nil, apperr.NotFound("department with id %s not found", r.DepartmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get department %s: %w", r.DepartmentID, err)
	}
	name, _ := department["name"].(string)
	if name == "" {
		return nil, apperr.NotFound("department %s has no name", r.DepartmentID)
	}
	d.Log.InfoContext(ctx, "department found", "department", name, "campus", r.Campus)

	users, err := d.Directory.DepartmentMembers(ctx, name)
	if err != nil {
		return nil, err
	}
	return BoardResult{Success: true, Department: department, Users: users, Count: len(users)}, nil
}
