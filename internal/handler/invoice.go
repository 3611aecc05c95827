package handler

import (
	"context"
	"fmt"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/domain"
	"github.com/biso/functions/internal/invoiceflow"
)

// InvoiceResult reports the invoice generated for an expense.
type InvoiceResult struct {
	Success   bool   `json:"success"`
	InvoiceID int64  `json:"invoiceId"`
	Status    string `json:"status"`
}

// GenerateInvoice sends a pending expense to the invoice workflow and marks
// it submitted with the invoice number it was given. process-receipts
// needs that number to book the expense.
func GenerateInvoice(ctx context.Context, d *Deps, req Request) (any, error) {
	var r struct {
		ID string `json:"$id"`
	}
	if err := req.Decode(&r); err != nil {
		return nil, err
	}
	if err := missing(required("$id", r.ID != "")); err != nil {
		return nil, err
	}

	var exp domain.Expense
	if err := d.Store.GetDocument(ctx, domain.DatabaseMain, domain.CollectionExpenses, r.ID, &exp); err != nil {
		return nil, fmt.Errorf("get expense: %w", err)
	}
	if exp.InvoiceID != nil {
		return nil, apperr.Validation("expense %s already has invoice %d", r.ID, *exp.InvoiceID)
	}
	if exp.User == nil {
		if exp.UserID == "" {
			return nil, apperr.Validation("expense %s has no user", r.ID)
		}
		var u domain.User
		if err := d.Store.GetDocument(ctx, domain.DatabaseApp, domain.CollectionUser, exp.UserID, &u); err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		exp.User = &u
	}
	if len(exp.Attachments) == 0 {
		return nil, apperr.Validation("expense %s has no receipts", r.ID)
	}

	invoiceID, err := d.Invoices.Submit(ctx, invoiceflow.FromExpense(exp, *exp.User))
	if err != nil {
		return nil, err
	}
	d.Log.InfoContext(ctx, "invoice generated", "expense_id", r.ID, "invoice_id", invoiceID)

	update := map[string]any{"status": domain.ExpenseSubmitted, "invoice_id": invoiceID}
	if err := d.Store.UpdateDocument(ctx, domain.DatabaseMain, domain.CollectionExpenses, r.ID, update); err != nil {
		return nil, fmt.Errorf("mark expense submitted: %w", err)
	}
	return InvoiceResult{Success: true, InvoiceID: invoiceID, Status: domain.ExpenseSubmitted}, nil
}
