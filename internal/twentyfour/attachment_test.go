package twentyfour

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biso/functions/internal/soap"
	"github.com/biso/functions/internal/twentyfour/twentyfourtest"
)

func savedFile(md MetaData) *saveRequest {
	return &saveRequest{
		File: ImageFile{
			ID:        42,
			Type:      FilePNG,
			FrameInfo: []ImageFrameInfo{{ID: 1, StampNo: 9001, MetaData: md}},
		},
		Location: LocationRetrieval,
	}
}

func TestSave_Envelope(t *testing.T) {
	g := goldie.New(t)

	withoutMeta, err := soap.Build(soap.V12, savedFile(nil))
	require.NoError(t, err)
	g.Assert(t, "save_file_nil_metadata", withoutMeta)

	withMeta, err := soap.Build(soap.V12, savedFile(MetaData{
		{Key: "InvoiceNo", Value: "1001"},
		{Key: "Credit", Value: "7610"},
	}))
	require.NoError(t, err)
	g.Assert(t, "save_file_metadata", withMeta)
}

func TestImageFile_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		file ImageFile
	}{
		{name: "bare", file: ImageFile{ID: 7, Type: FileJPEG}},
		{name: "nil metadata", file: savedFile(nil).File},
		{
			name: "everything",
			file: ImageFile{
				ID:        8,
				Type:      FileTIFF,
				StampNo:   77,
				StampMeta: []KeyValuePair{{Key: "Comment", Value: "Taxi & parking <airport>"}},
				FrameInfo: []ImageFrameInfo{{ID: 1, StampNo: 77, MetaData: MetaData{{Key: "PageNo", Value: "2"}}}},
				ContactID: []int{10, 11},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := soap.Build(soap.V12, &saveRequest{File: tt.file, Location: LocationJournal})
			require.NoError(t, err)

			var got saveRequest
			require.NoError(t, soap.Decode(payload, &got))
			assert.Equal(t, tt.file, got.File)
			assert.Equal(t, LocationJournal, got.Location)
		})
	}
}

// uploadServer fakes the attachment service and keeps the appended bytes.
type uploadServer struct {
	*twentyfourtest.Server
	offsets []int64
	data    []byte
	saved   saveRequest
}

func newUploadServer(t *testing.T) (*Client, *uploadServer) {
	t.Helper()
	c, srv := newTestClient(t)
	u := &uploadServer{Server: srv}

	srv.Respond("Create", `<CreateResponse xmlns="http://24sevenoffice.com/webservices/economy/accounting/"><CreateResult><Id>42</Id><Type>Png</Type></CreateResult></CreateResponse>`)
	srv.Handle("AppendChunk", func(call twentyfourtest.Call) (int, string) {
		var req appendChunkRequest
		if err := soap.Decode(call.Body, &req); err != nil {
			return http.StatusBadRequest, twentyfourtest.FaultEnvelope("soap:Sender", err.Error())
		}
		part, err := base64.StdEncoding.DecodeString(req.Buffer)
		if err != nil {
			return http.StatusBadRequest, twentyfourtest.FaultEnvelope("soap:Sender", err.Error())
		}
		if req.Offset != int64(len(u.data)) {
			return http.StatusBadRequest, twentyfourtest.FaultEnvelope("soap:Sender", fmt.Sprintf("unexpected offset %d", req.Offset))
		}
		u.offsets = append(u.offsets, req.Offset)
		u.data = append(u.data, part...)
		return http.StatusOK, `<AppendChunkResponse xmlns="http://24sevenoffice.com/webservices/economy/accounting/" />`
	})
	srv.Respond("GetStampNo", `<GetStampNoResponse xmlns="http://24sevenoffice.com/webservices/economy/accounting/"><GetStampNoResult>9001</GetStampNoResult></GetStampNoResponse>`)
	srv.Handle("Save", func(call twentyfourtest.Call) (int, string) {
		if err := soap.Decode(call.Body, &u.saved); err != nil {
			return http.StatusBadRequest, twentyfourtest.FaultEnvelope("soap:Sender", err.Error())
		}
		return http.StatusOK, `<SaveResponse xmlns="http://24sevenoffice.com/webservices/economy/accounting/" />`
	})
	return c, u
}

func TestUpload(t *testing.T) {
	c, srv := newUploadServer(t)
	s, err := c.Login(context.Background())
	require.NoError(t, err)

	data := bytes.Repeat([]byte("0123456789"), 25)
	up := &Uploader{ChunkSize: 100}
	stampNo, err := up.Upload(context.Background(), s, Attachment{
		Type:       FilePNG,
		Data:       data,
		PageNo:     2,
		InvoiceOCR: "1001",
		MetaData:   MetaData{{Key: "Amount", Value: "250"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 9001, stampNo)
	assert.Equal(t, []string{"Login", "Create", "AppendChunk", "AppendChunk", "AppendChunk", "GetStampNo", "Save"}, srv.Ops())
	assert.Equal(t, []int64{0, 100, 200}, srv.offsets)
	assert.Equal(t, data, srv.data)

	require.Len(t, srv.saved.File.FrameInfo, 1)
	frame := srv.saved.File.FrameInfo[0]
	assert.Equal(t, 42, srv.saved.File.ID)
	assert.Equal(t, LocationRetrieval, srv.saved.Location)
	assert.Equal(t, 9001, frame.StampNo)
	assert.Equal(t, MetaData{
		{Key: "PageNo", Value: "2"},
		{Key: "InvoiceOCR", Value: "1001"},
		{Key: "Amount", Value: "250"},
	}, frame.MetaData)
}

func TestUpload_ReusesStampNo(t *testing.T) {
	c, srv := newUploadServer(t)
	s, err := c.Login(context.Background())
	require.NoError(t, err)

	stampNo, err := (&Uploader{}).Upload(context.Background(), s, Attachment{Type: FileJPEG, Data: []byte("receipt"), StampNo: 555})
	require.NoError(t, err)

	assert.Equal(t, 555, stampNo)
	assert.Equal(t, 0, srv.Count("GetStampNo"))
	assert.Equal(t, 555, srv.saved.File.FrameInfo[0].StampNo)
	assert.Nil(t, srv.saved.File.FrameInfo[0].MetaData)
	assert.Contains(t, string(srv.Calls()[len(srv.Calls())-1].Body), `<MetaData xsi:nil="true"></MetaData>`)
}

func TestUpload_AppendFailureAborts(t *testing.T) {
	c, srv := newUploadServer(t)
	srv.Fault("AppendChunk", "soap:Receiver", "Disk full")

	s, err := c.Login(context.Background())
	require.NoError(t, err)

	_, err = (&Uploader{ChunkSize: 4}).Upload(context.Background(), s, Attachment{Type: FilePNG, Data: []byte("0123456789")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append chunk at 0")
	assert.Equal(t, 1, srv.Count("AppendChunk"))
	assert.Equal(t, 0, srv.Count("Save"))
}

func TestUpload_EmptyFileMakesNoRequest(t *testing.T) {
	c, srv := newUploadServer(t)
	s, err := c.Login(context.Background())
	require.NoError(t, err)

	_, err = (&Uploader{}).Upload(context.Background(), s, Attachment{Type: FilePNG})
	require.Error(t, err)
	assert.Equal(t, []string{"Login"}, srv.Ops())
}

func TestDownload(t *testing.T) {
	c, srv := newTestClient(t)
	content := []byte("hello attachment")
	srv.Respond("GetSize", fmt.Sprintf(`<GetSizeResponse xmlns="http://24sevenoffice.com/webservices/economy/accounting/"><GetSizeResult>%d</GetSizeResult></GetSizeResponse>`, len(content)))
	srv.Handle("DownloadChunk", func(call twentyfourtest.Call) (int, string) {
		var req downloadChunkRequest
		if err := soap.Decode(call.Body, &req); err != nil {
			return http.StatusBadRequest, twentyfourtest.FaultEnvelope("soap:Sender", err.Error())
		}
		end := req.Offset + int64(req.BufferSize)
		if end > int64(len(content)) {
			end = int64(len(content))
		}
		part := base64.StdEncoding.EncodeToString(content[req.Offset:end])
		return http.StatusOK, `<DownloadChunkResponse xmlns="http://24sevenoffice.com/webservices/economy/accounting/"><DownloadChunkResult>` + part + `</DownloadChunkResult></DownloadChunkResponse>`
	})

	s, err := c.Login(context.Background())
	require.NoError(t, err)
	got, err := s.Download(context.Background(), ImageFile{ID: 42, Type: FilePNG}, 5)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, 4, srv.Count("DownloadChunk"))
}

func TestApprovers_ArraysOfOne(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Respond("GetApproverList", `<GetApproverListResponse xmlns="http://24sevenoffice.com/webservices/economy/accounting/"><GetApproverListResult>
<KeyValuePair><Key>17</Key><Value>Økonomiansvarlig</Value></KeyValuePair>
</GetApproverListResult></GetApproverListResponse>`)

	s, err := c.Login(context.Background())
	require.NoError(t, err)
	got, err := s.Approvers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []KeyValuePair{{Key: "17", Value: "Økonomiansvarlig"}}, got)
}

func TestEnvelopes_LeaveOutEmptyArrays(t *testing.T) {
	file := ImageFile{ID: 7, Type: FilePNG}
	tests := []struct {
		name     string
		op       any
		expected string
	}{
		{
			name:     "append chunk",
			op:       &appendChunkRequest{File: file, Buffer: "AQID", Offset: 0},
			expected: "<file><Id>7</Id><Type>Png</Type></file><buffer>AQID</buffer>",
		},
		{
			name:     "get size",
			op:       newFileRequest("GetSize", file),
			expected: "<file><Id>7</Id><Type>Png</Type></file></GetSize>",
		},
		{
			name:     "file info by id",
			op:       &getFileInfoRequest{Parameters: FileInfoQuery{FileID: Ints{3}}},
			expected: "<parameters><FileId><int>3</int></FileId></parameters>",
		},
		{
			name: "invoice without dimensions",
			op: &saveInvoicesRequest{Invoices: []InvoiceOrder{{
				CustomerID:  1,
				InvoiceRows: []InvoiceRow{{ProductID: 69, Quantity: 1}},
			}}},
			expected: "</InvoiceRows></InvoiceOrder>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := soap.Build(soap.V12, tt.op)
			require.NoError(t, err)
			assert.Contains(t, string(payload), tt.expected)
			for _, el := range []string{"StampMeta", "FrameInfo", "ContactId", "StampNo", "AttachmentStatus", "UserDefinedDimensions"} {
				assert.NotContains(t, string(payload), "<"+el+">")
			}
		})
	}
}
