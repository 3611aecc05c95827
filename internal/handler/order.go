package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/domain"
	"github.com/biso/functions/internal/membership"
	"github.com/biso/functions/internal/twentyfour"
)

// orderRequest is a paid checkout forwarded for invoicing.
type orderRequest struct {
	ID            string          `json:"$id"`
	Reference     string          `json:"reference"`
	Amount        float64         `json:"amount"`
	Description   string          `json:"description"`
	MembershipID  json.Number     `json:"membership_id"`
	Membership    json.RawMessage `json:"membership"`
	Status        string          `json:"status"`
	PaidAmount    float64         `json:"paid_amount"`
	User          *domain.User    `json:"user"`
	PaymentMethod string          `json:"payment_method"`
	UserID        string          `json:"user_id"`
}

// orderMembership is the membership embedded in an order, either as an
// object or as a JSON string.
type orderMembership struct {
	Category json.Number `json:"category"`
	Name     string      `json:"name"`
}

type order struct {
	studentID  int
	productID  int
	category   int
	membership string
}

func (r orderRequest) validate() (order, error) {
	err := missing(
		required("reference", r.Reference != ""),
		required("amount", r.Amount != 0),
		required("description", r.Description != ""),
		required("membership_id", r.MembershipID != ""),
		required("status", r.Status != ""),
		required("paid_amount", r.PaidAmount != 0),
		required("user", r.User != nil),
		required("payment_method", r.PaymentMethod != ""),
		required("user_id", r.UserID != ""),
		required("membership", len(bytes.TrimSpace(r.Membership)) > 0 && string(bytes.TrimSpace(r.Membership)) != "null"),
	)
	if err != nil {
		return order{}, err
	}

	var o order
	o.studentID, err = strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(r.User.StudentID), "s", ""))
	if err != nil || o.studentID <= 0 {
		return order{}, apperr.Validation("invalid student id %q", r.User.StudentID)
	}
	product, err := r.MembershipID.Int64()
	if err != nil || product <= 0 {
		return order{}, apperr.Validation("invalid membership_id %q", r.MembershipID)
	}
	o.productID = int(product)

	raw, err := unquote(r.Membership)
	if err != nil {
		return order{}, apperr.Validation("invalid membership format")
	}
	var m orderMembership
	if err := json.Unmarshal(raw, &m); err != nil {
		return order{}, apperr.Validation("invalid membership format")
	}
	category, err := m.Category.Int64()
	if err != nil || category <= 0 || m.Name == "" {
		return order{}, apperr.Validation("invalid membership object")
	}
	o.category = int(category)
	o.membership = m.Name
	return o, nil
}

// OrderResult identifies the saved invoice.
type OrderResult struct {
	Success    bool `json:"success"`
	CustomerID int  `json:"customerId"`
	OrderID    int  `json:"orderId"`
	InvoiceID  int  `json:"invoiceId"`
}

// CreateOrder invoices a membership paid in the app. The customer number is
// the student id; a missing customer is created.
func CreateOrder(ctx context.Context, d *Deps, req Request) (any, error) {
	var r orderRequest
	if err := req.Decode(&r); err != nil {
		return nil, err
	}
	o, err := r.validate()
	if err != nil {
		return nil, err
	}
	log := d.Log.With("reference", r.Reference, "student_id", o.studentID)

	session, err := d.ERP.Login(ctx)
	if err != nil {
		return nil, err
	}

	customerID, err := orderCustomer(ctx, session, o.studentID, *r.User)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "customer resolved", "customer_id", customerID)

	if err := session.AssignCategory(ctx, o.category, customerID); err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "customer category updated", "category", o.category)

	campusID, campusName := "", ""
	if r.User.Campus != nil {
		campusID, campusName = r.User.Campus.ID, r.User.Campus.Name
	}
	inv := twentyfour.InvoiceOrder{
		CustomerID:            customerID,
		OrderStatus:           membership.InvoiceStatus(d.Config.Membership.ShouldInvoice),
		PaymentTime:           twentyfour.Int(0),
		IncludeVAT:            twentyfour.Bool(true),
		PaymentMethodID:       1,
		PaymentAmount:         r.PaidAmount,
		DepartmentID:          d.Catalog.DepartmentID(campusID),
		InvoiceRows:           []twentyfour.InvoiceRow{{ProductID: o.productID, Price: r.PaidAmount, Quantity: 1}},
		AccrualDate:           twentyfour.DateOf(membership.OrderAccrualDate(d.now())),
		AccrualLength:         membership.OrderAccrualMonths,
		UserDefinedDimensions: membership.Dimensions(campusName, o.membership),
	}
	saved, err := session.SaveInvoices(ctx, inv)
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "invoice saved", "order_id", saved[0].OrderID, "invoice_id", saved[0].InvoiceID)

	return OrderResult{
		Success:    true,
		CustomerID: customerID,
		OrderID:    saved[0].OrderID,
		InvoiceID:  saved[0].InvoiceID,
	}, nil
}

// orderCustomer returns the customer numbered studentID, creating it when
// it does not exist. A failing lookup aborts rather than risk a duplicate.
func orderCustomer(ctx context.Context, s *twentyfour.Session, studentID int, u domain.User) (int, error) {
	c, ok, err := s.FindCustomer(ctx, studentID)
	if err != nil {
		return 0, fmt.Errorf("find customer %d: %w", studentID, err)
	}
	if ok {
		return c.ID, nil
	}
	id, err := s.CreateCustomer(ctx, twentyfour.Company{
		ID:         studentID,
		ExternalID: u.StudentID,
		Name:       u.Name,
		Email:      u.Email,
	})
	if err != nil {
		return 0, fmt.Errorf("create customer %d: %w", studentID, err)
	}
	return id, nil
}
