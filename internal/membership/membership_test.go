package membership

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biso/functions/internal/domain"
	"github.com/biso/functions/internal/twentyfour"
)

func TestDefaultCatalog_Variations(t *testing.T) {
	tests := []struct {
		variation string
		campus    string
		typ       string
		category  int
		product   int
		months    int
	}{
		{"22141", "Oslo", "Semester", 113170, 50, 6},
		{"22146", "Bergen", "Year", 113172, 69, 12},
		{"22151", "Trondheim", "3 Years", 113171, 80, 36},
		{"22144", "Stavanger", "Semester", 113170, 50, 6},
		{"22152", "Stavanger", "3 Years", 113171, 80, 36},
	}

	c := Default()
	for _, tt := range tests {
		t.Run(tt.variation, func(t *testing.T) {
			v, ok := c.Variation(tt.variation)
			require.True(t, ok)
			assert.Equal(t, tt.campus, v.Campus.Name)
			assert.Equal(t, tt.typ, v.Type.Name)
			assert.Equal(t, tt.category, v.Type.Category)
			assert.Equal(t, tt.product, v.Type.Product)
			assert.Equal(t, tt.months, v.Type.Months)
		})
	}

	_, ok := c.Variation("99999")
	assert.False(t, ok)
}

func TestDepartmentID(t *testing.T) {
	c := Default()
	tests := map[string]int{"1": 1, "2": 300, "3": 600, "4": 800, "": 1000, "9": 1000}
	for campus, expected := range tests {
		assert.Equal(t, expected, c.DepartmentID(campus), "campus %q", campus)
	}
}

func TestCampusOf(t *testing.T) {
	c := Default()
	tests := []struct {
		department int
		expected   string
	}{
		{0, "National"},
		{1, "Oslo"},
		{299, "Oslo"},
		{300, "Bergen"},
		{650, "Trondheim"},
		{999, "Stavanger"},
		{1000, "National"},
		{1500, "National"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, c.CampusOf(tt.department).Name, "department %d", tt.department)
	}

	// Round trip through the department id of every campus.
	for _, id := range []string{"1", "2", "3", "4"} {
		assert.Equal(t, id, c.CampusOf(c.DepartmentID(id)).ID)
	}
}

func TestType_IgnoresCase(t *testing.T) {
	typ, ok := Default().Type("3 YEARS")
	require.True(t, ok)
	assert.Equal(t, 36, typ.Months)

	_, ok = Default().Type("decade")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"no national":      "types: []",
		"unknown campus":   "national: {department: 1000}\ntypes: [{name: Year, months: 12}]\nvariations: {\"1\": {campus: x, type: Year}}",
		"unknown type":     "national: {department: 1000}\ncampuses: [{id: \"1\", department: 1}]\nvariations: {\"1\": {campus: \"1\", type: Decade}}",
		"zero length":      "national: {department: 1000}\ntypes: [{name: Year}]",
		"not yaml":         "campuses: [",
		"duplicate campus": "national: {department: 1000}\ncampuses: [{id: \"1\", department: 1}, {id: \"1\", department: 2}]",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestAccrualDates(t *testing.T) {
	oslo := time.FixedZone("CET", 60*60)

	tests := []struct {
		name  string
		now   time.Time
		order string
		shop  string
	}{
		{"january", time.Date(2026, time.January, 15, 10, 0, 0, 0, oslo), "2026-07-01", "2026-06-01"},
		{"end of june", time.Date(2026, time.June, 30, 23, 59, 0, 0, oslo), "2026-07-01", "2026-06-01"},
		{"first of july", time.Date(2026, time.July, 1, 0, 0, 0, 0, oslo), "2027-01-01", "2026-07-01"},
		{"december", time.Date(2026, time.December, 31, 12, 0, 0, 0, oslo), "2027-01-01", "2026-07-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.order, OrderAccrualDate(tt.now).Format(time.DateOnly))
			assert.Equal(t, tt.shop, ShopAccrualDate(tt.now).Format(time.DateOnly))
		})
	}
}

func TestLatest(t *testing.T) {
	memberships := []domain.Membership{
		{ID: "a", Name: "Semester Vår 2026", ExpiryDate: "2026-07-31T00:00:00.000+00:00"},
		{ID: "b", Name: "Year 2026", ExpiryDate: "2027-07-31T00:00:00.000+00:00"},
		{ID: "c", Name: "Semester Høst 2026", ExpiryDate: "2027-01-31T00:00:00.000+00:00"},
		{ID: "d", Name: "Broken", ExpiryDate: "soon"},
	}

	tests := []struct {
		name       string
		categories []string
		expected   string
	}{
		{"newest of several", []string{"SEMESTER VÅR 2026", "semester høst 2026"}, "c"},
		{"year wins", []string{"year 2026", "Semester Vår 2026"}, "b"},
		{"unparseable expiry still matches", []string{"broken"}, "d"},
		{"none", []string{"Alumni"}, ""},
		{"no categories", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Latest(memberships, tt.categories)
			assert.Equal(t, tt.expected != "", ok)
			assert.Equal(t, tt.expected, m.ID)
		})
	}
	assert.Equal(t, "a", memberships[0].ID, "input is not reordered")
}

func TestSameName(t *testing.T) {
	assert.True(t, SameName(" Semester Høst ", "SEMESTER HØST"))
	assert.True(t, SameName("Straße", "STRASSE"))
	assert.False(t, SameName("Year", "Years"))
}

func TestDimensions(t *testing.T) {
	dims := Dimensions("Bergen", "Year")
	require.Len(t, dims, 2)
	assert.Equal(t, twentyfour.UserDefinedDimension{Type: twentyfour.DimensionUserDefined, Name: "Bergen", TypeID: "101"}, dims[0])
	assert.Equal(t, twentyfour.UserDefinedDimension{Type: twentyfour.DimensionUserDefined, Name: "Year", TypeID: "102"}, dims[1])

	assert.Equal(t, twentyfour.StatusInvoiced, InvoiceStatus(true))
	assert.Equal(t, twentyfour.StatusDraft, InvoiceStatus(false))
}
