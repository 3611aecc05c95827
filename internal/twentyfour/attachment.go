package twentyfour

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/biso/functions/internal/chunker"
	"github.com/biso/functions/internal/soap"
)

// FileType is the image format of an attachment.
type FileType string

// File types.
const (
	FileUnknown FileType = "Unknown"
	FileJPEG    FileType = "Jpeg"
	FilePNG     FileType = "Png"
	FileGIF     FileType = "Gif"
	FileBMP     FileType = "Bmp"
	FileTIFF    FileType = "Tiff"
)

// FileLocation is the inbox a saved attachment lands in.
type FileLocation string

// File locations.
const (
	LocationJournal   FileLocation = "Journal"
	LocationRetrieval FileLocation = "Retrieval"
)

// FlagType is an attachment status flag used in file queries.
type FlagType string

// MetaData is the frame metadata of an attachment. The service requires the
// element to be present, so an empty MetaData is sent as xsi:nil.
type MetaData []KeyValuePair

// MarshalXML writes the pairs, or a nil-marked element when there are none.
func (m MetaData) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if len(m) == 0 {
		start.Attr = append(start.Attr, soap.NilAttr())
		if err := e.EncodeToken(start); err != nil {
			return err
		}
		return e.EncodeToken(start.End())
	}

	if err := e.EncodeToken(start); err != nil {
		return err
	}
	pair := xml.StartElement{Name: xml.Name{Local: "KeyValuePair"}}
	for _, kv := range m {
		if err := e.EncodeElement(kv, pair); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// UnmarshalXML reads the pairs. A nil-marked or empty element yields nil.
func (m *MetaData) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var v struct {
		Pairs []KeyValuePair `xml:"KeyValuePair"`
	}
	if err := d.DecodeElement(&v, &start); err != nil {
		return err
	}
	*m = v.Pairs
	return nil
}

// ImageFrameInfo describes one page of an attachment.
type ImageFrameInfo struct {
	ID       int      `xml:"Id"`
	StampNo  int      `xml:"StampNo"`
	MetaData MetaData `xml:"MetaData"`
	Status   int      `xml:"Status"`
}

// ImageFile identifies an attachment and carries its save-time metadata.
type ImageFile struct {
	ID        int           `xml:"Id"`
	Type      FileType      `xml:"Type"`
	StampNo   int           `xml:"StampNo,omitempty"`
	StampMeta KeyValuePairs `xml:"StampMeta,omitempty"`
	FrameInfo FrameInfos    `xml:"FrameInfo,omitempty"`
	ContactID Ints          `xml:"ContactId,omitempty"`
}

func (f *ImageFile) validate() error {
	if f.ID <= 0 {
		return errors.New("attachment: file id is required")
	}
	if f.Type == "" {
		return errors.New("attachment: file type is required")
	}
	return nil
}

// FileInfoQuery selects attachments in GetFileInfo. Zero fields are not sent.
type FileInfoQuery struct {
	StampNo                   Ints   `xml:"StampNo,omitempty"`
	FileID                    Ints   `xml:"FileId,omitempty"`
	AttachmentRegisteredAfter string `xml:"AttachmentRegisteredAfter,omitempty"`
	AttachmentChangedAfter    string `xml:"AttachmentChangedAfter,omitempty"`
	HasStampNo                *bool  `xml:"HasStampNo,omitempty"`
	FileApproved              *bool  `xml:"FileApproved,omitempty"`
	AttachmentStatus          Flags  `xml:"AttachmentStatus,omitempty"`
}

// StampSeries is a stamp number series.
type StampSeries struct {
	ID   string `xml:"Id"`
	Name string `xml:"Name"`
}

type createRequest struct {
	XMLName struct{} `xml:"http://24sevenoffice.com/webservices/economy/accounting/ Create"`
	Type    FileType `xml:"type"`
}

func (r *createRequest) Validate() error {
	if r.Type == "" {
		return errors.New("attachment: file type is required")
	}
	return nil
}

type createResponse struct {
	File ImageFile `xml:"CreateResult"`
}

// CreateFile creates an empty placeholder file to append chunks to.
func (s *Session) CreateFile(ctx context.Context, t FileType) (ImageFile, error) {
	var resp createResponse
	if err := s.Call(ctx, ServiceAttachment, &createRequest{Type: t}, &resp); err != nil {
		return ImageFile{}, fmt.Errorf("create file: %w", err)
	}
	if resp.File.ID == 0 {
		return ImageFile{}, errors.New("create file: no file id returned")
	}
	if resp.File.Type == "" {
		resp.File.Type = t
	}
	return resp.File, nil
}

type appendChunkRequest struct {
	XMLName struct{}  `xml:"http://24sevenoffice.com/webservices/economy/accounting/ AppendChunk"`
	File    ImageFile `xml:"file"`
	Buffer  string    `xml:"buffer"`
	Offset  int64     `xml:"offset"`
}

func (r *appendChunkRequest) Validate() error {
	if err := r.File.validate(); err != nil {
		return err
	}
	if r.Buffer == "" {
		return errors.New("attachment: chunk is empty")
	}
	if r.Offset < 0 {
		return errors.New("attachment: chunk offset is negative")
	}
	return nil
}

// AppendChunk writes data at offset into the file.
func (s *Session) AppendChunk(ctx context.Context, f ImageFile, data []byte, offset int64) error {
	req := &appendChunkRequest{File: f, Buffer: base64.StdEncoding.EncodeToString(data), Offset: offset}
	if err := s.Call(ctx, ServiceAttachment, req, nil); err != nil {
		return fmt.Errorf("append chunk at %d: %w", offset, err)
	}
	return nil
}

type appendChunkByLengthRequest struct {
	XMLName      struct{}  `xml:"http://24sevenoffice.com/webservices/economy/accounting/ AppendChunkByLength"`
	File         ImageFile `xml:"file"`
	Buffer       string    `xml:"buffer"`
	BufferLength int       `xml:"bufferLength"`
	Offset       int64     `xml:"offset"`
}

func (r *appendChunkByLengthRequest) Validate() error {
	if err := r.File.validate(); err != nil {
		return err
	}
	if r.Buffer == "" || r.BufferLength <= 0 {
		return errors.New("attachment: chunk is empty")
	}
	if r.Offset < 0 {
		return errors.New("attachment: chunk offset is negative")
	}
	return nil
}

// AppendChunkByLength writes the first length bytes of data at offset.
func (s *Session) AppendChunkByLength(ctx context.Context, f ImageFile, data []byte, length int, offset int64) error {
	if length > len(data) {
		return fmt.Errorf("append chunk: length %d exceeds buffer of %d bytes", length, len(data))
	}
	req := &appendChunkByLengthRequest{
		File:         f,
		Buffer:       base64.StdEncoding.EncodeToString(data[:length]),
		BufferLength: length,
		Offset:       offset,
	}
	if err := s.Call(ctx, ServiceAttachment, req, nil); err != nil {
		return fmt.Errorf("append chunk at %d: %w", offset, err)
	}
	return nil
}

type getStampNoRequest struct {
	XMLName struct{} `xml:"http://24sevenoffice.com/webservices/economy/accounting/ GetStampNo"`
}

type getStampNoResponse struct {
	StampNo int `xml:"GetStampNoResult"`
}

// StampNo allocates a new stamp number.
func (s *Session) StampNo(ctx context.Context) (int, error) {
	var resp getStampNoResponse
	if err := s.Call(ctx, ServiceAttachment, &getStampNoRequest{}, &resp); err != nil {
		return 0, fmt.Errorf("get stamp number: %w", err)
	}
	if resp.StampNo == 0 {
		return 0, errors.New("get stamp number: no stamp number returned")
	}
	return resp.StampNo, nil
}

type saveRequest struct {
	XMLName  struct{}     `xml:"http://24sevenoffice.com/webservices/economy/accounting/ Save"`
	File     ImageFile    `xml:"file"`
	Location FileLocation `xml:"location"`
}

func (r *saveRequest) Validate() error {
	if err := r.File.validate(); err != nil {
		return err
	}
	if r.Location == "" {
		return errors.New("attachment: location is required")
	}
	return nil
}

// SaveFile stores the uploaded file with its frame metadata.
func (s *Session) SaveFile(ctx context.Context, f ImageFile, loc FileLocation) error {
	if err := s.Call(ctx, ServiceAttachment, &saveRequest{File: f, Location: loc}, nil); err != nil {
		return fmt.Errorf("save file: %w", err)
	}
	return nil
}

type fileRequest struct {
	XMLName xml.Name
	File    ImageFile `xml:"file"`
}

func (r *fileRequest) Validate() error {
	return r.File.validate()
}

func newFileRequest(op string, f ImageFile) *fileRequest {
	return &fileRequest{XMLName: xml.Name{Space: NamespaceAccounting, Local: op}, File: f}
}

type getSizeResponse struct {
	Size int64 `xml:"GetSizeResult"`
}

// FileSize returns the stored size of a file in bytes.
func (s *Session) FileSize(ctx context.Context, f ImageFile) (int64, error) {
	var resp getSizeResponse
	if err := s.Call(ctx, ServiceAttachment, newFileRequest("GetSize", f), &resp); err != nil {
		return 0, fmt.Errorf("get size: %w", err)
	}
	return resp.Size, nil
}

type getChecksumResponse struct {
	Checksum string `xml:"GetChecksumResult"`
}

// FileChecksum returns the checksum the service computed for a file.
func (s *Session) FileChecksum(ctx context.Context, f ImageFile) (string, error) {
	var resp getChecksumResponse
	if err := s.Call(ctx, ServiceAttachment, newFileRequest("GetChecksum", f), &resp); err != nil {
		return "", fmt.Errorf("get checksum: %w", err)
	}
	return resp.Checksum, nil
}

type downloadChunkRequest struct {
	XMLName    struct{}  `xml:"http://24sevenoffice.com/webservices/economy/accounting/ DownloadChunk"`
	File       ImageFile `xml:"file"`
	Offset     int64     `xml:"offset"`
	BufferSize int       `xml:"bufferSize"`
}

func (r *downloadChunkRequest) Validate() error {
	if err := r.File.validate(); err != nil {
		return err
	}
	if r.Offset < 0 || r.BufferSize <= 0 {
		return errors.New("attachment: invalid download range")
	}
	return nil
}

type downloadChunkResponse struct {
	Buffer string `xml:"DownloadChunkResult"`
}

// DownloadChunk reads up to size bytes from offset.
func (s *Session) DownloadChunk(ctx context.Context, f ImageFile, offset int64, size int) ([]byte, error) {
	var resp downloadChunkResponse
	req := &downloadChunkRequest{File: f, Offset: offset, BufferSize: size}
	if err := s.Call(ctx, ServiceAttachment, req, &resp); err != nil {
		return nil, fmt.Errorf("download chunk at %d: %w", offset, err)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Buffer)
	if err != nil {
		return nil, fmt.Errorf("download chunk at %d: %w", offset, err)
	}
	return data, nil
}

// Download reads a whole file in chunkSize pieces.
func (s *Session) Download(ctx context.Context, f ImageFile, chunkSize int) ([]byte, error) {
	size, err := s.FileSize(ctx, f)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, size)
	for _, c := range chunker.Split(size, chunkSize) {
		part, err := s.DownloadChunk(ctx, f, c.Offset, c.Length)
		if err != nil {
			return nil, err
		}
		data = append(data, part...)
	}
	return data, nil
}

type getFileInfoRequest struct {
	XMLName    struct{}      `xml:"http://24sevenoffice.com/webservices/economy/accounting/ GetFileInfo"`
	Parameters FileInfoQuery `xml:"parameters"`
}

type getFileInfoResponse struct {
	Files []ImageFile `xml:"GetFileInfoResult>ImageFile"`
}

// FileInfo lists the attachments matching q.
func (s *Session) FileInfo(ctx context.Context, q FileInfoQuery) ([]ImageFile, error) {
	var resp getFileInfoResponse
	if err := s.Call(ctx, ServiceAttachment, &getFileInfoRequest{Parameters: q}, &resp); err != nil {
		return nil, fmt.Errorf("get file info: %w", err)
	}
	return soap.Seq(resp.Files), nil
}

type emptyAccountingRequest struct {
	XMLName xml.Name
}

func accountingOp(op string) *emptyAccountingRequest {
	return &emptyAccountingRequest{XMLName: xml.Name{Space: NamespaceAccounting, Local: op}}
}

type getMaxRequestLengthResponse struct {
	Length int `xml:"GetMaxRequestLengthResult"`
}

// MaxRequestLength returns the largest request the service accepts, in bytes.
func (s *Session) MaxRequestLength(ctx context.Context) (int, error) {
	var resp getMaxRequestLengthResponse
	if err := s.Call(ctx, ServiceAttachment, accountingOp("GetMaxRequestLength"), &resp); err != nil {
		return 0, fmt.Errorf("get max request length: %w", err)
	}
	return resp.Length, nil
}

type getApproverListResponse struct {
	Approvers []KeyValuePair `xml:"GetApproverListResult>KeyValuePair"`
}

// Approvers lists the users who may approve attachments.
func (s *Session) Approvers(ctx context.Context) ([]KeyValuePair, error) {
	var resp getApproverListResponse
	if err := s.Call(ctx, ServiceAttachment, accountingOp("GetApproverList"), &resp); err != nil {
		return nil, fmt.Errorf("get approver list: %w", err)
	}
	return soap.Seq(resp.Approvers), nil
}

type getSeriesResponse struct {
	Series []StampSeries `xml:"GetSeriesResult>StampSeries"`
}

// Series lists the stamp number series.
func (s *Session) Series(ctx context.Context) ([]StampSeries, error) {
	var resp getSeriesResponse
	if err := s.Call(ctx, ServiceAttachment, accountingOp("GetSeries"), &resp); err != nil {
		return nil, fmt.Errorf("get series: %w", err)
	}
	return soap.Seq(resp.Series), nil
}

type getSeriesStampNoRequest struct {
	XMLName  struct{} `xml:"http://24sevenoffice.com/webservices/economy/accounting/ GetSeriesStampNo"`
	SeriesID string   `xml:"SeriesId"`
}

func (r *getSeriesStampNoRequest) Validate() error {
	if r.SeriesID == "" {
		return errors.New("attachment: series id is required")
	}
	return nil
}

type getSeriesStampNoResponse struct {
	StampNo int `xml:"GetSeriesStampNoResult"`
}

// SeriesStampNo allocates a stamp number from a series.
func (s *Session) SeriesStampNo(ctx context.Context, seriesID string) (int, error) {
	var resp getSeriesStampNoResponse
	if err := s.Call(ctx, ServiceAttachment, &getSeriesStampNoRequest{SeriesID: seriesID}, &resp); err != nil {
		return 0, fmt.Errorf("get series stamp number: %w", err)
	}
	return resp.StampNo, nil
}

// Attachment is a file to upload.
type Attachment struct {
	Type FileType
	Data []byte
	// StampNo groups the file with an earlier upload. Zero allocates a new one.
	StampNo    int
	PageNo     int
	InvoiceOCR string
	MetaData   MetaData
}

// Uploader runs the create, append, stamp and save sequence.
type Uploader struct {
	ChunkSize int
	Logger    *slog.Logger
}

// Upload stores a and returns the stamp number it was saved under. Chunks
// are appended strictly in offset order; the first failure aborts the upload.
func (u *Uploader) Upload(ctx context.Context, s *Session, a Attachment) (int, error) {
	if len(a.Data) == 0 {
		return 0, errors.New("upload: file is empty")
	}
	if a.Type == "" {
		return 0, errors.New("upload: file type is required")
	}
	log := u.Logger
	if log == nil {
		log = slog.Default()
	}

	file, err := s.CreateFile(ctx, a.Type)
	if err != nil {
		return 0, err
	}

	chunks := chunker.Split(int64(len(a.Data)), u.ChunkSize)
	for _, c := range chunks {
		if err := s.AppendChunk(ctx, file, c.Bytes(a.Data), c.Offset); err != nil {
			return 0, err
		}
		log.DebugContext(ctx, "uploaded chunk", "file_id", file.ID, "chunk", c.Index+1, "of", len(chunks))
	}

	stampNo := a.StampNo
	if stampNo == 0 {
		if stampNo, err = s.StampNo(ctx); err != nil {
			return 0, err
		}
	}

	file.FrameInfo = FrameInfos{{
		ID:       1,
		StampNo:  stampNo,
		MetaData: a.frameMetaData(),
		Status:   0,
	}}
	if err := s.SaveFile(ctx, file, LocationRetrieval); err != nil {
		return 0, err
	}

	log.InfoContext(ctx, "attachment saved", "file_id", file.ID, "stamp_no", stampNo, "bytes", len(a.Data), "chunks", len(chunks))
	return stampNo, nil
}

func (a Attachment) frameMetaData() MetaData {
	var md MetaData
	if a.PageNo > 0 {
		md = append(md, KeyValuePair{Key: "PageNo", Value: strconv.Itoa(a.PageNo)})
	}
	if a.InvoiceOCR != "" {
		md = append(md, KeyValuePair{Key: "InvoiceOCR", Value: a.InvoiceOCR})
	}
	return append(md, a.MetaData...)
}
