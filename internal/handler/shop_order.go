package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/membership"
	"github.com/biso/functions/internal/statushook"
	"github.com/biso/functions/internal/twentyfour"
)

// shopOrderRequest is a membership bought in the webshop.
type shopOrderRequest struct {
	Customer *struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	} `json:"customer"`
	SNumber           string      `json:"snumber"`
	SelectedVariation json.Number `json:"selected_variation"`
	Price             json.Number `json:"price"`
}

// studentNumber keeps the digits of an s-number.
func studentNumber(s string) (int, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	n, err := strconv.Atoi(digits)
	if err != nil || n <= 0 {
		return 0, apperr.Validation("invalid student number format")
	}
	return n, nil
}

// ShopResult is returned when the pipeline completes.
type ShopResult struct {
	Success string `json:"success"`
}

// CreateMembershipFromShop invoices a webshop membership purchase and
// reports progress to the status webhook.
func CreateMembershipFromShop(ctx context.Context, d *Deps, req Request) (any, error) {
	var r shopOrderRequest
	if err := req.Decode(&r); err != nil {
		return nil, err
	}
	if err := missing(
		required("customer", r.Customer != nil),
		required("snumber", r.SNumber != ""),
		required("selected_variation", r.SelectedVariation != ""),
	); err != nil {
		return nil, err
	}
	studentID, err := studentNumber(r.SNumber)
	if err != nil {
		return nil, err
	}
	variation, ok := d.Catalog.Variation(r.SelectedVariation.String())
	if !ok {
		return nil, apperr.Validation("unknown variation %s", r.SelectedVariation)
	}
	price, err := r.Price.Float64()
	if err != nil || price < 0 {
		return nil, apperr.Validation("invalid price %q", r.Price)
	}

	name := strings.TrimSpace(r.Customer.FirstName + " " + r.Customer.LastName)
	update := statushook.Update{
		StudentID:      studentID,
		Name:           name,
		MembershipType: variation.Type.Name,
		CampusName:     variation.Campus.Name,
	}
	report := func(status string) {
		update.Status = status
		d.Status.Send(ctx, update)
	}
	log := d.Log.With("student_id", studentID, "variation", variation.ID)

	session, err := d.ERP.Login(ctx)
	if err != nil {
		return nil, err
	}

	customer, found, err := session.FindCustomer(ctx, studentID)
	if err != nil {
		report(statushook.StatusReceived)
		return nil, fmt.Errorf("failed to retrieve customer: %w", err)
	}
	if !found {
		if !d.Config.Membership.ShouldCreateCustomer {
			log.InfoContext(ctx, "customer not found and creation is disabled")
			report(statushook.StatusReceived)
			return nil, apperr.NotFound("customer not found and creation is disabled")
		}
		id, err := session.CreateCustomer(ctx, twentyfour.Company{
			ID:         studentID,
			ExternalID: r.SNumber,
			Name:       name,
			FirstName:  r.Customer.FirstName,
			Email:      r.Customer.Email,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create customer: %w", err)
		}
		customer = twentyfour.Company{ID: id, Name: name}
		log.InfoContext(ctx, "customer created", "customer_id", id)
	}
	if customer.Name != "" {
		update.Name = customer.Name
	}

	if err := session.AssignCategory(ctx, variation.Type.Category, customer.ID); err != nil {
		return nil, fmt.Errorf("failed to update customer category: %w", err)
	}

	now := d.now()
	inv := twentyfour.InvoiceOrder{
		CustomerID:            customer.ID,
		OrderStatus:           membership.InvoiceStatus(d.Config.Membership.ShouldInvoice),
		DateInvoiced:          twentyfour.DateOf(now),
		PaymentTime:           twentyfour.Int(0),
		IncludeVAT:            twentyfour.Bool(true),
		PaymentMethodID:       1,
		PaymentAmount:         price,
		DepartmentID:          variation.Campus.Department,
		InvoiceRows:           []twentyfour.InvoiceRow{{ProductID: variation.Type.Product, Price: price, Quantity: 1}},
		AccrualDate:           twentyfour.DateOf(membership.ShopAccrualDate(now)),
		AccrualLength:         variation.Type.Months,
		UserDefinedDimensions: membership.Dimensions(variation.Campus.Name, variation.Type.Name),
	}
	saved, err := session.SaveInvoices(ctx, inv)
	if err != nil {
		report(statushook.StatusInvoiceFailed)
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	log.InfoContext(ctx, "invoice saved", "order_id", saved[0].OrderID)
	report(statushook.StatusInvoiced)

	return ShopResult{Success: "Process completed successfully"}, nil
}
