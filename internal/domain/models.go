// Package domain contains the documents the functions read and write.
package domain

import "encoding/json"

// Databases and collections of the document store.
const (
	DatabaseApp  = "app"
	DatabaseMain = "main"
	DatabaseERP  = "24so"

	CollectionCheckout    = "checkout"
	CollectionPayment     = "payment"
	CollectionUser        = "user"
	CollectionMemberships = "memberships"
	CollectionDepartments = "departments"
	CollectionExpenses    = "expenses"
	CollectionVoters      = "election_users"
	CollectionVotes       = "election_vote"

	BucketExpenseInvoices    = "expense_invoices"
	BucketExpenseAttachments = "expense_attachments"
)

// Campus is a campus reference embedded in user documents.
type Campus struct {
	ID   string `json:"$id"`
	Name string `json:"name"`
}

// User is a member profile.
type User struct {
	ID          string  `json:"$id"`
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Phone       string  `json:"phone,omitempty"`
	Address     string  `json:"address,omitempty"`
	City        string  `json:"city,omitempty"`
	Zip         string  `json:"zip,omitempty"`
	BankAccount string  `json:"bank_account,omitempty"`
	StudentID   string  `json:"student_id,omitempty"`
	CampusID    string  `json:"campus_id,omitempty"`
	Campus      *Campus `json:"campus,omitempty"`
}

// Expense statuses.
const (
	ExpensePending   = "pending"
	ExpenseSubmitted = "submitted"
	ExpenseApproved  = "approved"
	ExpenseRejected  = "rejected"
)

// Expense is a reimbursement claim with its receipts.
type Expense struct {
	ID               string              `json:"$id"`
	CreatedAt        string              `json:"$createdAt,omitempty"`
	Campus           string              `json:"campus"`
	Department       string              `json:"department"`
	BankAccount      string              `json:"bank_account"`
	Description      string              `json:"description"`
	Total            float64             `json:"total"`
	PrepaymentAmount float64             `json:"prepayment_amount"`
	Status           string              `json:"status"`
	InvoiceID        *int64              `json:"invoice_id"`
	UserID           string              `json:"userId"`
	User             *User               `json:"user,omitempty"`
	Attachments      []ExpenseAttachment `json:"expenseAttachments"`
	StampNo          int                 `json:"stampNo,omitempty"`
}

// ExpenseAttachment is one receipt of an expense.
type ExpenseAttachment struct {
	ID          string  `json:"$id"`
	Date        string  `json:"date"`
	URL         string  `json:"url"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
}

// Checkout statuses written before the provider reports a session state.
const CheckoutPending = "pending"

// Checkout tracks one payment session.
type Checkout struct {
	Reference     string `json:"reference"`
	Amount        int    `json:"amount"`
	Description   string `json:"description"`
	Membership    string `json:"membership,omitempty"`
	MembershipID  string `json:"membership_id,omitempty"`
	Status        string `json:"status"`
	PaymentMethod string `json:"payment_method,omitempty"`
	PaidAmount    int    `json:"paid_amount,omitempty"`
}

// Payment links a checkout reference to the paying user.
type Payment struct {
	ID   string `json:"$id"`
	User *User  `json:"user,omitempty"`
}

// Membership is a purchasable membership period.
type Membership struct {
	ID           string      `json:"$id"`
	MembershipID string      `json:"membership_id"`
	Name         string      `json:"name"`
	Price        float64     `json:"price"`
	Category     json.Number `json:"category"`
	Status       bool        `json:"status"`
	ExpiryDate   string      `json:"expiryDate"`
}

// Department is an ERP department mirrored into the document store.
type Department struct {
	ID     int    `json:"Id"`
	Name   string `json:"Name"`
	Campus string `json:"Campus"`
}

// Voter is a member registered for an election.
type Voter struct {
	ID      string `json:"$id"`
	CanVote bool   `json:"canVote"`
}

// Vote is one weighted ballot for an option of a voting item.
type Vote struct {
	OptionID        string  `json:"optionId"`
	VoterID         string  `json:"voterId"`
	ElectionID      string  `json:"electionId"`
	VotingSessionID string  `json:"votingSessionId"`
	VotingItemID    string  `json:"votingItemId"`
	Weight          float64 `json:"weight"`
	Voter           string  `json:"voter,omitempty"`
}
