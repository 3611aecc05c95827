package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// Memory is an in-process Store for tests and local runs.
type Memory struct {
	mu    sync.Mutex
	docs  map[string]map[string]map[string]any
	perms map[string][]string
	files map[string]memoryFile
}

type memoryFile struct {
	meta File
	data []byte
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		docs:  map[string]map[string]map[string]any{},
		perms: map[string][]string{},
		files: map[string]memoryFile{},
	}
}

func collectionKey(db, collection string) string { return db + "/" + collection }

func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encode document: %w", err)
	}
	m := map[string]any{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("docstore: document is not an object: %w", err)
	}
	return m, nil
}

func decodeInto(v, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func notFound(what string) error {
	return &APIError{StatusCode: http.StatusNotFound, Message: what + " could not be found", Type: "not_found"}
}

// Put stores a document, replacing any earlier one. It is for seeding.
func (m *Memory) Put(db, collection, id string, doc any) error {
	d, err := toMap(doc)
	if err != nil {
		return err
	}
	d["$id"] = id

	m.mu.Lock()
	defer m.mu.Unlock()
	key := collectionKey(db, collection)
	if m.docs[key] == nil {
		m.docs[key] = map[string]map[string]any{}
	}
	m.docs[key][id] = d
	return nil
}

// Document returns a copy of a stored document.
func (m *Memory) Document(db, collection, id string) (map[string]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[collectionKey(db, collection)][id]
	if !ok {
		return nil, false
	}
	cp := make(map[string]any, len(d))
	for k, v := range d {
		cp[k] = v
	}
	return cp, true
}

// PutFile stores a file.
func (m *Memory) PutFile(bucket, id, mimeType string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[bucket+"/"+id] = memoryFile{
		meta: File{ID: id, Bucket: bucket, Name: id, MimeType: mimeType, Size: int64(len(data))},
		data: append([]byte(nil), data...),
	}
}

// GetDocument implements Store.
func (m *Memory) GetDocument(_ context.Context, db, collection, id string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[collectionKey(db, collection)][id]
	if !ok {
		return notFound("document " + id)
	}
	return decodeInto(d, out)
}

// ListDocuments implements Store. Equal, orderDesc and limit queries are
// applied; select is ignored.
func (m *Memory) ListDocuments(_ context.Context, db, collection string, queries []Query, out any) error {
	m.mu.Lock()
	var docs []map[string]any
	for _, d := range m.docs[collectionKey(db, collection)] {
		if matches(d, queries) {
			docs = append(docs, d)
		}
	}
	m.mu.Unlock()

	sort.Slice(docs, func(i, j int) bool {
		return fmt.Sprint(docs[i]["$id"]) < fmt.Sprint(docs[j]["$id"])
	})
	for _, q := range queries {
		switch q.Method {
		case "orderDesc":
			attr := q.Attribute
			sort.SliceStable(docs, func(i, j int) bool {
				return fmt.Sprint(docs[i][attr]) > fmt.Sprint(docs[j][attr])
			})
		case "limit":
			if len(q.Values) == 1 {
				if n, ok := q.Values[0].(int); ok && n < len(docs) {
					docs = docs[:n]
				}
			}
		}
	}

	if docs == nil {
		docs = []map[string]any{}
	}
	return decodeInto(docs, out)
}

func matches(d map[string]any, queries []Query) bool {
	for _, q := range queries {
		if q.Method != "equal" {
			continue
		}
		got, err := json.Marshal(d[q.Attribute])
		if err != nil {
			return false
		}
		found := false
		for _, v := range q.Values {
			want, err := json.Marshal(v)
			if err == nil && string(want) == string(got) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// CreateDocument implements Store.
func (m *Memory) CreateDocument(_ context.Context, db, collection, id string, data any, permissions ...string) error {
	d, err := toMap(data)
	if err != nil {
		return err
	}
	d["$id"] = id

	m.mu.Lock()
	defer m.mu.Unlock()
	key := collectionKey(db, collection)
	if m.docs[key] == nil {
		m.docs[key] = map[string]map[string]any{}
	}
	if _, exists := m.docs[key][id]; exists {
		return &APIError{StatusCode: http.StatusConflict, Message: "document " + id + " already exists", Type: "document_already_exists"}
	}
	m.docs[key][id] = d
	if len(permissions) > 0 {
		m.perms[key+"/"+id] = append([]string(nil), permissions...)
	}
	return nil
}

// Permissions returns the permissions a document was created with.
func (m *Memory) Permissions(db, collection, id string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.perms[collectionKey(db, collection)+"/"+id]...)
}

// UpdateDocument implements Store.
func (m *Memory) UpdateDocument(_ context.Context, db, collection, id string, data any) error {
	patch, err := toMap(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[collectionKey(db, collection)][id]
	if !ok {
		return notFound("document " + id)
	}
	for k, v := range patch {
		d[k] = v
	}
	return nil
}

// GetFile implements Store.
func (m *Memory) GetFile(_ context.Context, bucket, id string) (File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[bucket+"/"+id]
	if !ok {
		return File{}, notFound("file " + id)
	}
	return f.meta, nil
}

// DownloadFile implements Store.
func (m *Memory) DownloadFile(_ context.Context, bucket, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[bucket+"/"+id]
	if !ok {
		return nil, notFound("file " + id)
	}
	return append([]byte(nil), f.data...), nil
}
