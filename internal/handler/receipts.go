package handler

import (
	"context"

	"github.com/biso/functions/internal/expense"
)

// ApprovalResult reports an expense booked in the ERP.
type ApprovalResult struct {
	Success        bool                    `json:"success"`
	StampNo        int                     `json:"stampNo"`
	Message        string                  `json:"message"`
	FailedReceipts []expense.FailedReceipt `json:"failedReceipts,omitempty"`
}

// ProcessReceipts uploads an approved expense, its invoice document and
// receipts to the ERP and marks it approved.
func ProcessReceipts(ctx context.Context, d *Deps, req Request) (any, error) {
	var r struct {
		ID string `json:"$id"`
	}
	if err := req.Decode(&r); err != nil {
		return nil, err
	}
	if err := missing(required("$id", r.ID != "")); err != nil {
		return nil, err
	}

	a := &expense.Approver{Store: d.Store, ERP: d.ERP, Uploader: d.Uploader, Log: d.Log}
	res, err := a.Approve(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	return ApprovalResult{
		Success:        true,
		StampNo:        res.StampNo,
		Message:        res.Message(),
		FailedReceipts: res.Failed,
	}, nil
}
