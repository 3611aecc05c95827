package handler

import (
	"context"
	"fmt"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/domain"
	"github.com/biso/functions/internal/vipps"
)

// UserJWTHeader carries the session token of the calling user.
const UserJWTHeader = "x-appwrite-user-jwt"

// PaymentResult is the started checkout.
type PaymentResult struct {
	Reference string        `json:"reference"`
	Checkout  vipps.Session `json:"checkout"`
}

// VippsPayment starts a checkout and records it, as the calling user, in
// the checkout collection under a fresh reference.
func VippsPayment(ctx context.Context, d *Deps, req Request) (any, error) {
	var r struct {
		Amount       int    `json:"amount"`
		Description  string `json:"description"`
		ReturnURL    string `json:"returnUrl"`
		MembershipID string `json:"membershipId"`
	}
	if err := req.Decode(&r); err != nil {
		return nil, err
	}
	if err := missing(
		required("amount", r.Amount != 0),
		required("description", r.Description != ""),
		required("returnUrl", r.ReturnURL != ""),
	); err != nil {
		return nil, err
	}
	jwt := req.Header(UserJWTHeader)
	if jwt == "" {
		return nil, apperr.Validation("missing user session")
	}

	reference := d.newID()
	log := d.Log.With("reference", reference)

	session, err := d.Vipps.CreateCheckout(ctx, vipps.CheckoutRequest{
		Reference:   reference,
		Amount:      r.Amount,
		Description: r.Description,
		ReturnURL:   r.ReturnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initiate checkout: %w", err)
	}
	log.InfoContext(ctx, "checkout created")

	doc := domain.Checkout{
		Reference:    reference,
		Amount:       r.Amount,
		Description:  r.Description,
		Membership:   r.MembershipID,
		MembershipID: r.MembershipID,
		Status:       domain.CheckoutPending,
	}
	if err := d.UserStore(jwt).CreateDocument(ctx, domain.DatabaseApp, domain.CollectionCheckout, reference, doc); err != nil {
		return nil, fmt.Errorf("store checkout: %w", err)
	}
	log.InfoContext(ctx, "checkout stored")

	return PaymentResult{Reference: reference, Checkout: session}, nil
}

// CallbackResult is the checkout state after reconciliation.
type CallbackResult struct {
	Checkout vipps.CheckoutInfo `json:"checkout"`
}

// VippsCallback reconciles a checkout with the payment provider. The
// checkout document gets the provider state; a completed payment marks the
// paying user as a member. When the provider cannot be asked, the error is
// recorded as the checkout status.
func VippsCallback(ctx context.Context, d *Deps, req Request) (any, error) {
	var r struct {
		Reference string `json:"reference"`
	}
	if err := req.Decode(&r); err != nil {
		return nil, err
	}
	if err := missing(required("reference", r.Reference != "")); err != nil {
		return nil, err
	}
	log := d.Log.With("reference", r.Reference)

	info, err := d.Vipps.GetCheckout(ctx, r.Reference)
	if err != nil {
		update := map[string]any{"status": err.Error()}
		if uerr := d.Store.UpdateDocument(ctx, domain.DatabaseApp, domain.CollectionCheckout, r.Reference, update); uerr != nil {
			log.ErrorContext(ctx, "recording checkout error failed", "error", uerr)
		}
		return nil, err
	}
	log.InfoContext(ctx, "checkout fetched", "state", info.SessionState)

	update := map[string]any{
		"payment_method": info.PaymentMethod,
		"status":         info.SessionState,
		"paid_amount":    info.PaidAmount(),
	}
	if err := d.Store.UpdateDocument(ctx, domain.DatabaseApp, domain.CollectionCheckout, r.Reference, update); err != nil {
		return nil, fmt.Errorf("update checkout: %w", err)
	}

	if info.Paid() {
		if err := markMember(ctx, d, r.Reference); err != nil {
			return nil, err
		}
		log.InfoContext(ctx, "member marked")
	}
	return CallbackResult{Checkout: info}, nil
}

// markMember flags the user who paid under reference as a member.
func markMember(ctx context.Context, d *Deps, reference string) error {
	var payment domain.Payment
	if err := d.Store.GetDocument(ctx, domain.DatabaseApp, domain.CollectionPayment, reference, &payment); err != nil {
		return fmt.Errorf("get payment: %w", err)
	}
	if payment.User == nil || payment.User.ID == "" {
		return apperr.NotFound("payment %s has no user", reference)
	}
	update := map[string]any{"student_id": map[string]any{"isMember": true}}
	if err := d.Store.UpdateDocument(ctx, domain.DatabaseApp, domain.CollectionUser, payment.User.ID, update); err != nil {
		return fmt.Errorf("mark member: %w", err)
	}
	return nil
}
