package twentyfourtest

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"sync"
)

const accountingNS = "http://24sevenoffice.com/webservices/economy/accounting/"

// Pair is a metadata key and value.
type Pair struct {
	Key   string `xml:"Key"`
	Value string `xml:"Value"`
}

// File is an attachment assembled by the fake attachment service.
type File struct {
	ID       int
	Type     string
	Data     []byte
	Saved    bool
	StampNo  int
	MetaData []Pair
}

// Meta returns the value of the first metadata pair with key.
func (f File) Meta(key string) string {
	for _, p := range f.MetaData {
		if p.Key == key {
			return p.Value
		}
	}
	return ""
}

// Uploads fakes the attachment service. Files get ids from 1 in creation
// order and every GetStampNo hands out the next stamp number.
type Uploads struct {
	mu        sync.Mutex
	files     []*File
	nextStamp int
	failing   map[int]string
}

// AcceptUploads registers Create, AppendChunk, GetStampNo and Save
// handlers on s. Stamp numbers start at firstStamp.
func (s *Server) AcceptUploads(firstStamp int) *Uploads {
	u := &Uploads{nextStamp: firstStamp, failing: map[int]string{}}
	s.Handle("Create", u.create)
	s.Handle("AppendChunk", u.appendChunk)
	s.Handle("GetStampNo", u.stampNo)
	s.Handle("Save", u.save)
	return u
}

// FailAppend makes chunk appends to the n-th created file (from 1) fault
// with message.
func (u *Uploads) FailAppend(n int, message string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failing[n] = message
}

// Files returns copies of every created file in creation order.
func (u *Uploads) Files() []File {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]File, 0, len(u.files))
	for _, f := range u.files {
		out = append(out, *f)
	}
	return out
}

// Saved returns the files that reached Save.
func (u *Uploads) Saved() []File {
	var out []File
	for _, f := range u.Files() {
		if f.Saved {
			out = append(out, f)
		}
	}
	return out
}

func (u *Uploads) file(id int) (*File, error) {
	if id < 1 || id > len(u.files) {
		return nil, fmt.Errorf("unknown file %d", id)
	}
	return u.files[id-1], nil
}

func sender(err error) (int, string) {
	return http.StatusBadRequest, FaultEnvelope("soap:Sender", err.Error())
}

func (u *Uploads) create(c Call) (int, string) {
	var env struct {
		Type string `xml:"Body>Create>type"`
	}
	if err := xml.Unmarshal(c.Body, &env); err != nil {
		return sender(err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	f := &File{ID: len(u.files) + 1, Type: env.Type}
	u.files = append(u.files, f)
	return http.StatusOK, fmt.Sprintf(`<CreateResponse xmlns=%q><CreateResult><Id>%d</Id><Type>%s</Type></CreateResult></CreateResponse>`, accountingNS, f.ID, f.Type)
}

func (u *Uploads) appendChunk(c Call) (int, string) {
	var env struct {
		ID     int    `xml:"Body>AppendChunk>file>Id"`
		Buffer string `xml:"Body>AppendChunk>buffer"`
		Offset int    `xml:"Body>AppendChunk>offset"`
	}
	if err := xml.Unmarshal(c.Body, &env); err != nil {
		return sender(err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if msg, ok := u.failing[env.ID]; ok {
		return http.StatusInternalServerError, FaultEnvelope("soap:Receiver", msg)
	}
	f, err := u.file(env.ID)
	if err != nil {
		return sender(err)
	}
	if env.Offset != len(f.Data) {
		return sender(fmt.Errorf("file %d: offset %d, have %d bytes", f.ID, env.Offset, len(f.Data)))
	}
	part, err := base64.StdEncoding.DecodeString(env.Buffer)
	if err != nil {
		return sender(err)
	}
	f.Data = append(f.Data, part...)
	return http.StatusOK, fmt.Sprintf(`<AppendChunkResponse xmlns=%q />`, accountingNS)
}

func (u *Uploads) stampNo(Call) (int, string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := u.nextStamp
	u.nextStamp++
	return http.StatusOK, fmt.Sprintf(`<GetStampNoResponse xmlns=%q><GetStampNoResult>%d</GetStampNoResult></GetStampNoResponse>`, accountingNS, n)
}

func (u *Uploads) save(c Call) (int, string) {
	var env struct {
		ID    int `xml:"Body>Save>file>Id"`
		Frame []struct {
			StampNo int    `xml:"StampNo"`
			Pairs   []Pair `xml:"MetaData>KeyValuePair"`
		} `xml:"Body>Save>file>FrameInfo>ImageFrameInfo"`
	}
	if err := xml.Unmarshal(c.Body, &env); err != nil {
		return sender(err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	f, err := u.file(env.ID)
	if err != nil {
		return sender(err)
	}
	if len(env.Frame) != 1 {
		return sender(fmt.Errorf("file %d: want one frame, got %d", f.ID, len(env.Frame)))
	}
	f.Saved = true
	f.StampNo = env.Frame[0].StampNo
	f.MetaData = env.Frame[0].Pairs
	return http.StatusOK, fmt.Sprintf(`<SaveResponse xmlns=%q />`, accountingNS)
}
