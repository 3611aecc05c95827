package twentyfour

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/soap"
	"github.com/biso/functions/internal/twentyfour/twentyfourtest"
)

func membershipOrder() InvoiceOrder {
	return InvoiceOrder{
		CustomerID:      123456,
		OrderStatus:     StatusDraft,
		PaymentTime:     Int(0),
		IncludeVAT:      Bool(true),
		PaymentMethodID: 1,
		PaymentAmount:   350,
		Distributor:     DistributorManual,
		DepartmentID:    300,
		InvoiceRows:     []InvoiceRow{{ProductID: 50, Price: 350, Quantity: 1}},
		AccrualDate:     "2026-07-01",
		AccrualLength:   6,
		UserDefinedDimensions: []UserDefinedDimension{
			{Type: DimensionUserDefined, Name: "Bergen", TypeID: "101"},
			{Type: DimensionUserDefined, Name: "Semester", TypeID: "102"},
		},
	}
}

func TestSaveInvoices_Envelope(t *testing.T) {
	payload, err := soap.Build(soap.V11, &saveInvoicesRequest{Invoices: []InvoiceOrder{membershipOrder()}})
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "save_invoices", payload)
}

func TestInvoiceOrder_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		order InvoiceOrder
	}{
		{name: "membership", order: membershipOrder()},
		{
			name: "minimal",
			order: InvoiceOrder{
				CustomerID:  1,
				InvoiceRows: []InvoiceRow{{ProductID: 69, Price: 600, Quantity: 1}},
			},
		},
		{
			name: "escaped text",
			order: InvoiceOrder{
				CustomerID:    2,
				YourReference: `Fish & Chips <AS> "quoted"`,
				InvoiceText:   "line one\nline two",
				InvoiceRows:   []InvoiceRow{{ProductID: 80, Name: "3 Years & more", Price: 1200.5, Quantity: 2}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := soap.Build(soap.V11, &saveInvoicesRequest{Invoices: []InvoiceOrder{tt.order}})
			require.NoError(t, err)

			var got saveInvoicesRequest
			require.NoError(t, soap.Decode(payload, &got))
			require.Len(t, got.Invoices, 1)
			assert.Equal(t, tt.order, got.Invoices[0])
		})
	}
}

func TestInvoiceOrder_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(o *InvoiceOrder)
		errorMsg string
	}{
		{name: "valid", mutate: func(o *InvoiceOrder) {}},
		{name: "missing customer", mutate: func(o *InvoiceOrder) { o.CustomerID = 0 }, errorMsg: "invoice: customer id is required"},
		{name: "no rows", mutate: func(o *InvoiceOrder) { o.InvoiceRows = nil }, errorMsg: "invoice: at least one row is required"},
		{name: "row without product", mutate: func(o *InvoiceOrder) { o.InvoiceRows[0].ProductID = 0 }, errorMsg: "invoice: row 1: product id is required"},
		{name: "zero quantity", mutate: func(o *InvoiceOrder) { o.InvoiceRows[0].Quantity = 0 }, errorMsg: "invoice: row 1: quantity must be positive"},
		{name: "bad accrual date", mutate: func(o *InvoiceOrder) { o.AccrualDate = "01.07.2026" }, errorMsg: `invoice: accrual date "01.07.2026" is not YYYY-MM-DD`},
		{name: "accrual without length", mutate: func(o *InvoiceOrder) { o.AccrualLength = 0 }, errorMsg: "invoice: accrual length is required with an accrual date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := membershipOrder()
			tt.mutate(&o)
			err := o.Validate()
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.errorMsg)
		})
	}
}

func TestSaveInvoices(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Respond("SaveInvoices", `<SaveInvoicesResponse xmlns="http://24sevenOffice.com/webservices"><SaveInvoicesResult>
<InvoiceOrder><OrderId>5001</OrderId><InvoiceId>10042</InvoiceId></InvoiceOrder>
</SaveInvoicesResult></SaveInvoicesResponse>`)

	s, err := c.Login(context.Background())
	require.NoError(t, err)

	order := membershipOrder()
	order.Distributor = ""
	saved, err := s.SaveInvoices(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, []SavedInvoice{{OrderID: 5001, InvoiceID: 10042}}, saved)
	assert.Empty(t, order.Distributor, "caller's order must not be modified")

	calls := srv.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, "/Economy/InvoiceOrder/V001/InvoiceService.asmx", last.Path)
	assert.Equal(t, `"http://24sevenOffice.com/webservices/SaveInvoices"`, last.SOAPAction)
	assert.True(t, strings.Contains(string(last.Body), "<soap:Envelope"), "invoice service is called with SOAP 1.1")
	assert.Contains(t, string(last.Body), "<Distributor>Manual</Distributor>")
}

func TestSaveInvoices_APIException(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Respond("SaveInvoices", `<SaveInvoicesResponse xmlns="http://24sevenOffice.com/webservices"><SaveInvoicesResult>
<InvoiceOrder><OrderId>0</OrderId><APIException><Type>Validation</Type><Message>Customer 123456 does not exist</Message></APIException></InvoiceOrder>
</SaveInvoicesResult></SaveInvoicesResponse>`)

	s, err := c.Login(context.Background())
	require.NoError(t, err)

	_, err = s.SaveInvoices(context.Background(), membershipOrder())
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, "Customer 123456 does not exist", remote.Message)
	assert.Equal(t, apperr.KindRemote, apperr.KindOf(err))
}

func TestSaveInvoices_InvalidOrderMakesNoRequest(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Handle("SaveInvoices", func(twentyfourtest.Call) (int, string) {
		t.Error("SaveInvoices must not be called")
		return http.StatusOK, ""
	})

	s, err := c.Login(context.Background())
	require.NoError(t, err)

	order := membershipOrder()
	order.CustomerID = 0
	_, err = s.SaveInvoices(context.Background(), order)
	require.Error(t, err)
	assert.Equal(t, 0, srv.Count("SaveInvoices"))
}

func TestDateOf(t *testing.T) {
	d := time.Date(2026, time.July, 1, 23, 59, 0, 0, time.UTC)
	if got := DateOf(d); got != "2026-07-01" {
		t.Errorf("DateOf() = %q, want %q", got, "2026-07-01")
	}
}
