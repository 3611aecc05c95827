package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biso/functions/internal/twentyfour/twentyfourtest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	out, err := run(t, "list")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 17, "header and one line per function")
	assert.Contains(t, out, "create-order")
	assert.Contains(t, out, "twentyfour,docstore")
}

func TestReadBody(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "order.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"$id":"exp-1"}`), 0o600))

	tests := []struct {
		name        string
		stdin       string
		file        string
		data        string
		expected    string
		expectError bool
	}{
		{name: "data", data: "s1234567", expected: "s1234567"},
		{name: "file", file: file, expected: `{"$id":"exp-1"}`},
		{name: "stdin", file: "-", stdin: `"s1"`, expected: `"s1"`},
		{name: "nothing", expected: ""},
		{name: "both", file: file, data: "x", expectError: true},
		{name: "missing file", file: filepath.Join(dir, "nope.json"), expectError: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readBody(strings.NewReader(tt.stdin), tt.file, tt.data)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestInvoke_UnknownFunction(t *testing.T) {
	_, err := run(t, "invoke", "translate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown function")
}

func TestInvoke_MissingSettings(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := run(t, "invoke", "gpt-translate", "--data", `{"text":"Hei"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestInvoke_PrintsErrorBody(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	out, err := run(t, "invoke", "gpt-translate", "--data", `{"source_lang":"no","target_lang":"en"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.JSONEq(t, `{"success":false,"error":"missing required parameters: text"}`, out)
}

func TestERPDepartments(t *testing.T) {
	srv := twentyfourtest.NewServer(t)
	srv.Respond("GetDepartmentList", `<GetDepartmentListResponse xmlns="http://24sevenOffice.com/webservices"><GetDepartmentListResult>`+
		`<Department><Id>300</Id><Name>Bergen</Name></Department></GetDepartmentListResult></GetDepartmentListResponse>`)
	t.Setenv("TWENTYFOUR_APP_ID", "app")
	t.Setenv("TWENTYFOUR_USERNAME", "u")
	t.Setenv("TWENTYFOUR_PASSWORD", "p")
	t.Setenv("TWENTYFOUR_BASE_URL", srv.URL)

	out, err := run(t, "erp", "departments")
	require.NoError(t, err)
	assert.Contains(t, out, "Bergen")
	assert.Equal(t, []string{"Login", "GetDepartmentList"}, srv.Ops())
}
