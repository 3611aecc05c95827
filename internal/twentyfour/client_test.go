package twentyfour

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/twentyfour/twentyfourtest"
)

func newTestClient(t *testing.T) (*Client, *twentyfourtest.Server) {
	t.Helper()
	srv := twentyfourtest.NewServer(t)
	c := New(Credentials{ApplicationID: "app-id", Username: "api@example.com", Password: "secret"},
		WithHTTPClient(srv.Client()),
		WithEndpoints(EndpointsAt(srv.URL)),
	)
	return c, srv
}

func TestLogin(t *testing.T) {
	c, srv := newTestClient(t)

	s, err := c.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, twentyfourtest.Token, s.Token())

	calls := srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/authenticate/v001/authenticate.asmx", calls[0].Path)
	assert.Contains(t, string(calls[0].Body), "<credential><ApplicationId>app-id</ApplicationId><Password>secret</Password><Username>api@example.com</Username></credential>")
}

func TestLogin_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		handler twentyfourtest.HandlerFunc
	}{
		{
			name: "fault",
			handler: func(twentyfourtest.Call) (int, string) {
				return http.StatusInternalServerError, twentyfourtest.FaultEnvelope("soap:Sender", "Invalid username or password")
			},
		},
		{
			name: "empty login result",
			handler: func(twentyfourtest.Call) (int, string) {
				return http.StatusOK, `<LoginResponse xmlns="http://24sevenOffice.com/webservices"><LoginResult /></LoginResponse>`
			},
		},
		{
			name: "unauthorized",
			handler: func(twentyfourtest.Call) (int, string) {
				return http.StatusUnauthorized, `<LoginResponse />`
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(t)
			srv.Handle("Login", tt.handler)

			_, err := c.Login(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAuthFailed), "error %v is not ErrAuthFailed", err)
			assert.Equal(t, apperr.KindAuth, apperr.KindOf(err))
		})
	}
}

func TestLogin_ServerFaultIsNotAuthFailure(t *testing.T) {
	for _, code := range []string{"soap:Receiver", "soap:Server"} {
		t.Run(code, func(t *testing.T) {
			c, srv := newTestClient(t)
			srv.Fault("Login", code, "Service unavailable")

			_, err := c.Login(context.Background())
			require.Error(t, err)
			assert.False(t, errors.Is(err, ErrAuthFailed))
			assert.Equal(t, apperr.KindRemote, apperr.KindOf(err))
		})
	}
}

func TestLogin_MissingCredentialsMakesNoRequest(t *testing.T) {
	srv := twentyfourtest.NewServer(t)
	c := New(Credentials{ApplicationID: "app-id"}, WithHTTPClient(srv.Client()), WithEndpoints(EndpointsAt(srv.URL)))

	_, err := c.Login(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAuthFailed))
	assert.Empty(t, srv.Calls())
}

func TestInvoke_SendsSessionCookie(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Respond("GetDepartmentList", `<GetDepartmentListResponse xmlns="http://24sevenOffice.com/webservices"><GetDepartmentListResult>
<Department><Id>300</Id><Name>Bergen</Name></Department>
</GetDepartmentListResult></GetDepartmentListResponse>`)

	var resp getDepartmentListResponse
	require.NoError(t, c.Invoke(context.Background(), ServiceClient, &getDepartmentListRequest{}, &resp))

	assert.Equal(t, []string{"Login", "GetDepartmentList"}, srv.Ops())
	calls := srv.Calls()
	assert.Equal(t, "ASP.NET_SessionId="+twentyfourtest.Token, calls[1].Cookie)
	assert.Equal(t, "/Client/V001/ClientService.asmx", calls[1].Path)
	assert.Equal(t, []Department{{ID: 300, Name: "Bergen"}}, resp.Departments)
}

func TestCall_FaultIsRemoteKind(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Fault("GetDepartmentList", "soap:Receiver", "Session timed out")

	s, err := c.Login(context.Background())
	require.NoError(t, err)

	_, err = s.Departments(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindRemote, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "Session timed out")
}

func TestDepartments_ArraysOfOne(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []Department
	}{
		{
			name:     "none",
			content:  `<GetDepartmentListResponse xmlns="http://24sevenOffice.com/webservices"><GetDepartmentListResult /></GetDepartmentListResponse>`,
			expected: []Department{},
		},
		{
			name:     "one",
			content:  `<GetDepartmentListResponse xmlns="http://24sevenOffice.com/webservices"><GetDepartmentListResult><Department><Id>1</Id><Name>Oslo</Name></Department></GetDepartmentListResult></GetDepartmentListResponse>`,
			expected: []Department{{ID: 1, Name: "Oslo"}},
		},
		{
			name: "many",
			content: `<GetDepartmentListResponse xmlns="http://24sevenOffice.com/webservices"><GetDepartmentListResult>` +
				`<Department><Id>1</Id><Name>Oslo</Name></Department>` +
				`<Department><Id>600</Id><Name>Trondheim</Name></Department>` +
				`</GetDepartmentListResult></GetDepartmentListResponse>`,
			expected: []Department{{ID: 1, Name: "Oslo"}, {ID: 600, Name: "Trondheim"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(t)
			srv.Respond("GetDepartmentList", tt.content)

			s, err := c.Login(context.Background())
			require.NoError(t, err)
			got, err := s.Departments(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
