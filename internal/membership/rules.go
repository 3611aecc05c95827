package membership

import (
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/biso/functions/internal/domain"
	"github.com/biso/functions/internal/twentyfour"
)

// User-defined dimension type ids membership invoices are tagged with.
const (
	DimensionCampus     = "101"
	DimensionMembership = "102"
)

// Dimensions tags a membership invoice with the campus and the membership
// name.
func Dimensions(campus, membershipName string) []twentyfour.UserDefinedDimension {
	return []twentyfour.UserDefinedDimension{
		{Type: twentyfour.DimensionUserDefined, Name: campus, TypeID: DimensionCampus},
		{Type: twentyfour.DimensionUserDefined, Name: membershipName, TypeID: DimensionMembership},
	}
}

// InvoiceStatus is the state new membership orders are saved in. Without
// invoicing enabled they stay drafts for manual review.
func InvoiceStatus(invoice bool) twentyfour.OrderStatus {
	if invoice {
		return twentyfour.StatusInvoiced
	}
	return twentyfour.StatusDraft
}

// OrderAccrualMonths is the accrual length of memberships paid in the app.
const OrderAccrualMonths = 6

// OrderAccrualDate is the accrual start for a membership paid in the app:
// 1 July for purchases in the first half of the year, otherwise 1 January
// of the next year.
func OrderAccrualDate(now time.Time) time.Time {
	if now.Month() < time.July {
		return time.Date(now.Year(), time.July, 1, 0, 0, 0, 0, now.Location())
	}
	return time.Date(now.Year()+1, time.January, 1, 0, 0, 0, 0, now.Location())
}

// ShopAccrualDate is the accrual start for a membership bought in the
// webshop: 1 June for purchases in the first half of the year, otherwise
// 1 July.
func ShopAccrualDate(now time.Time) time.Time {
	if now.Month() < time.July {
		return time.Date(now.Year(), time.June, 1, 0, 0, 0, 0, now.Location())
	}
	return time.Date(now.Year(), time.July, 1, 0, 0, 0, 0, now.Location())
}

// A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// SameName reports whether two category or membership names are equal
// under Unicode case folding.
func SameName(a, b string) bool {
	return fold(a) == fold(b)
}

func expiry(m domain.Membership) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, m.ExpiryDate); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Latest returns the membership with the latest expiry whose name matches
// one of the customer's categories. Memberships with unparseable expiry
// dates sort last.
func Latest(memberships []domain.Membership, categories []string) (domain.Membership, bool) {
	held := make(map[string]bool, len(categories))
	for _, c := range categories {
		held[fold(c)] = true
	}

	sorted := append([]domain.Membership(nil), memberships...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return expiry(sorted[i]).After(expiry(sorted[j]))
	})
	for _, m := range sorted {
		if held[fold(m.Name)] {
			return m, true
		}
	}
	return domain.Membership{}, false
}
