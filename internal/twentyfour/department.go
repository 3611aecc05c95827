package twentyfour

import (
	"context"
	"fmt"

	"github.com/biso/functions/internal/soap"
)

// Department is an accounting department.
type Department struct {
	ID   int    `xml:"Id"`
	Name string `xml:"Name"`
}

type getDepartmentListRequest struct {
	XMLName struct{} `xml:"http://24sevenOffice.com/webservices GetDepartmentList"`
}

type getDepartmentListResponse struct {
	Departments []Department `xml:"GetDepartmentListResult>Department"`
}

// Departments lists the client's departments.
func (s *Session) Departments(ctx context.Context) ([]Department, error) {
	var resp getDepartmentListResponse
	if err := s.Call(ctx, ServiceClient, &getDepartmentListRequest{}, &resp); err != nil {
		return nil, fmt.Errorf("get department list: %w", err)
	}
	return soap.Seq(resp.Departments), nil
}
