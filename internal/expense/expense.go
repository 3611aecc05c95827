// Package expense books approved expense claims in the ERP: the generated
// invoice document and every receipt are uploaded as attachments under one
// stamp number.
package expense

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/docstore"
	"github.com/biso/functions/internal/domain"
	"github.com/biso/functions/internal/twentyfour"
)

// MaxFileSize is the largest attachment the ERP accepts.
const MaxFileSize = 10 << 20

// Ledger accounts the invoice document is booked against.
const (
	CreditAccount = "7610"
	DebitAccount  = "2400"
)

var fileTypes = map[string]twentyfour.FileType{
	"image/jpeg": twentyfour.FileJPEG,
	"image/png":  twentyfour.FilePNG,
	"image/gif":  twentyfour.FileGIF,
	"image/bmp":  twentyfour.FileBMP,
	"image/tiff": twentyfour.FileTIFF,
}

// FileTypeFor maps a MIME type to an attachment file type. PDFs and other
// formats the ERP cannot store are validation errors.
func FileTypeFor(mimeType string) (twentyfour.FileType, error) {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	if mt == "application/pdf" {
		return "", apperr.Validation("PDF files are not supported by 24SevenOffice. Please convert the PDF to an image format (PNG, JPEG, etc.) before uploading.")
	}
	ft, ok := fileTypes[mt]
	if !ok {
		return "", apperr.Validation("unsupported file type: %s. Allowed types are: image/jpeg, image/png, image/gif, image/bmp, image/tiff", mimeType)
	}
	return ft, nil
}

// FailedReceipt is a receipt that could not be uploaded.
type FailedReceipt struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Result summarises an approval.
type Result struct {
	StampNo  int
	Receipts int
	Uploaded int
	Failed   []FailedReceipt
}

// Message is the human readable summary returned to the caller.
func (r Result) Message() string {
	return fmt.Sprintf("Successfully uploaded invoice and %d receipts", r.Uploaded)
}

// Approver uploads expense documents to the ERP.
type Approver struct {
	Store    docstore.Store
	ERP      *twentyfour.Client
	Uploader *twentyfour.Uploader
	Log      *slog.Logger
}

// Approve books the expense with id. The invoice document must upload or
// the approval fails. Receipts are uploaded one by one after it; a failing
// receipt is recorded in the result and the rest are still attempted.
func (a *Approver) Approve(ctx context.Context, id string) (Result, error) {
	if strings.TrimSpace(id) == "" {
		return Result{}, apperr.Validation("expense id is required")
	}
	log := a.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("expense_id", id)

	var exp domain.Expense
	if err := a.Store.GetDocument(ctx, domain.DatabaseMain, domain.CollectionExpenses, id, &exp); err != nil {
		return Result{}, fmt.Errorf("get expense: %w", err)
	}
	if exp.InvoiceID == nil {
		return Result{}, apperr.Validation("invoice not yet generated")
	}
	if exp.User == nil || exp.Attachments == nil {
		return Result{}, apperr.Validation("required relationships not loaded")
	}

	session, err := a.ERP.Login(ctx)
	if err != nil {
		return Result{}, err
	}

	customerNo, err := a.customer(ctx, session, *exp.User)
	if err != nil {
		return Result{}, err
	}
	log.InfoContext(ctx, "customer resolved", "customer_no", customerNo)

	dims := dimensions(exp)
	invoiceNo := strconv.FormatInt(*exp.InvoiceID, 10)
	invoice, err := a.file(ctx, domain.BucketExpenseInvoices, "invoice_"+invoiceNo)
	if err != nil {
		return Result{}, fmt.Errorf("invoice document: %w", err)
	}
	invoice.MetaData = append(twentyfour.MetaData{
		{Key: "InvoiceNo", Value: invoiceNo},
		{Key: "CustomerNo", Value: strconv.Itoa(customerNo)},
		{Key: "InvoiceOCR", Value: invoiceNo},
		{Key: "Amount", Value: amount(exp.Total)},
		{Key: "Credit", Value: CreditAccount},
		{Key: "Debit", Value: DebitAccount},
		{Key: "InvoiceDate", Value: dateOf(exp.CreatedAt)},
		{Key: "BankAccountNo", Value: exp.BankAccount},
	}, dims...)

	stampNo, err := a.Uploader.Upload(ctx, session, invoice)
	if err != nil {
		return Result{}, fmt.Errorf("upload invoice %s: %w", invoiceNo, err)
	}
	log.InfoContext(ctx, "invoice uploaded", "stamp_no", stampNo)

	res := Result{StampNo: stampNo, Receipts: len(exp.Attachments)}
	for i, att := range exp.Attachments {
		if err := a.receipt(ctx, session, att, i+1, stampNo, dims); err != nil {
			log.ErrorContext(ctx, "receipt upload failed", "receipt", i+1, "attachment_id", att.ID, "error", err)
			res.Failed = append(res.Failed, FailedReceipt{ID: att.ID, Error: err.Error()})
			continue
		}
		res.Uploaded++
		log.InfoContext(ctx, "receipt uploaded", "receipt", i+1, "of", len(exp.Attachments))
	}

	update := map[string]any{"status": domain.ExpenseApproved, "stampNo": stampNo}
	if err := a.Store.UpdateDocument(ctx, domain.DatabaseMain, domain.CollectionExpenses, id, update); err != nil {
		return res, fmt.Errorf("mark expense approved: %w", err)
	}
	return res, nil
}

// customer finds the claimant by name and email, creating a customer when
// none exists. A failing lookup aborts.
func (a *Approver) customer(ctx context.Context, s *twentyfour.Session, u domain.User) (int, error) {
	c, ok, err := s.SearchCustomer(ctx, u.Name, u.Email)
	if err != nil {
		return 0, fmt.Errorf("search customer: %w", err)
	}
	if ok {
		return c.ID, nil
	}
	id, err := s.CreateCustomer(ctx, twentyfour.Company{Name: u.Name, Email: u.Email})
	if err != nil {
		return 0, fmt.Errorf("create customer: %w", err)
	}
	return id, nil
}

func (a *Approver) receipt(ctx context.Context, s *twentyfour.Session, att domain.ExpenseAttachment, page, stampNo int, dims twentyfour.MetaData) error {
	fileID := fileIDOf(att.URL)
	if fileID == "" {
		return apperr.Validation("receipt %s has no file url", att.ID)
	}
	up, err := a.file(ctx, domain.BucketExpenseAttachments, fileID)
	if err != nil {
		return err
	}
	up.StampNo = stampNo
	up.PageNo = page
	up.MetaData = append(twentyfour.MetaData{
		{Key: "Amount", Value: amount(att.Amount)},
		{Key: "Comment", Value: att.Description},
		{Key: "InvoiceDate", Value: dateOf(att.Date)},
		{Key: "Type", Value: att.Type},
	}, dims...)
	_, err = a.Uploader.Upload(ctx, s, up)
	return err
}

// file downloads a stored file and checks that the ERP can take it.
func (a *Approver) file(ctx context.Context, bucket, id string) (twentyfour.Attachment, error) {
	meta, err := a.Store.GetFile(ctx, bucket, id)
	if err != nil {
		return twentyfour.Attachment{}, err
	}
	if meta.Size > MaxFileSize {
		return twentyfour.Attachment{}, apperr.Validation("file size exceeds maximum allowed size of %dMB", MaxFileSize>>20)
	}
	ft, err := FileTypeFor(meta.MimeType)
	if err != nil {
		return twentyfour.Attachment{}, err
	}
	data, err := a.Store.DownloadFile(ctx, bucket, id)
	if err != nil {
		return twentyfour.Attachment{}, err
	}
	if len(data) > MaxFileSize {
		return twentyfour.Attachment{}, apperr.Validation("file size exceeds maximum allowed size of %dMB", MaxFileSize>>20)
	}
	return twentyfour.Attachment{Type: ft, Data: data}, nil
}

// dimensions tags attachments with the expense department and campus.
func dimensions(exp domain.Expense) twentyfour.MetaData {
	return twentyfour.MetaData{
		{Key: "Dimension1", Value: string(twentyfour.DimensionDepartment) + "=" + exp.Department},
		{Key: "Dimension2", Value: string(twentyfour.DimensionUserDefined) + "=" + exp.Campus},
	}
}

// fileIDOf extracts the file id from a storage URL such as
// .../storage/buckets/<bucket>/files/<id>/view?project=x. A bare id is
// returned as is.
func fileIDOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+1 < len(parts); i++ {
		if parts[i] == "files" {
			return parts[i+1]
		}
	}
	return parts[len(parts)-1]
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// dateOf reduces a document timestamp to a service date. Values that are
// not timestamps pass through.
func dateOf(s string) string {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return twentyfour.DateOf(t)
	}
	return s
}
