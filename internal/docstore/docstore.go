// Package docstore reads and writes documents and files in the backend
// document database.
package docstore

import (
	"context"
	"encoding/json"
)

// Store is the document and file API used by the functions.
type Store interface {
	// GetDocument decodes one document into out.
	GetDocument(ctx context.Context, db, collection, id string, out any) error
	// ListDocuments decodes the matching documents into out, a pointer to a slice.
	ListDocuments(ctx context.Context, db, collection string, queries []Query, out any) error
	// CreateDocument stores data under id. Without permissions the
	// collection's defaults apply.
	CreateDocument(ctx context.Context, db, collection, id string, data any, permissions ...string) error
	// UpdateDocument merges data into an existing document.
	UpdateDocument(ctx context.Context, db, collection, id string, data any) error
	// GetFile returns the metadata of a stored file.
	GetFile(ctx context.Context, bucket, id string) (File, error)
	// DownloadFile returns the contents of a stored file.
	DownloadFile(ctx context.Context, bucket, id string) ([]byte, error)
}

// File is the metadata of a stored file.
type File struct {
	ID       string `json:"$id"`
	Bucket   string `json:"bucketId"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"sizeOriginal"`
}

// Roles and permissions attached to created documents.

// User is the role of one user.
func User(id string) string { return "user:" + id }

// Team is the role of the members of a team holding role, e.g. "owner".
func Team(id, role string) string { return "team:" + id + "/" + role }

// Read grants role read access.
func Read(role string) string { return `read("` + role + `")` }

// Delete grants role delete access.
func Delete(role string) string { return `delete("` + role + `")` }

// Query is one list filter, serialised the way the document API expects.
type Query struct {
	Method    string `json:"method"`
	Attribute string `json:"attribute,omitempty"`
	Values    []any  `json:"values,omitempty"`
}

// Equal matches documents whose attribute equals any of values.
func Equal(attribute string, values ...any) Query {
	return Query{Method: "equal", Attribute: attribute, Values: values}
}

// Select limits the attributes returned.
func Select(attributes ...string) Query {
	values := make([]any, len(attributes))
	for i, a := range attributes {
		values[i] = a
	}
	return Query{Method: "select", Values: values}
}

// OrderDesc sorts by attribute, newest or largest first.
func OrderDesc(attribute string) Query {
	return Query{Method: "orderDesc", Attribute: attribute}
}

// Limit caps the number of documents returned.
func Limit(n int) Query {
	return Query{Method: "limit", Values: []any{n}}
}

// String renders q as a query string value.
func (q Query) String() string {
	b, _ := json.Marshal(q)
	return string(b)
}
