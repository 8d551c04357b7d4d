package datasource_test

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagcore/flagcore-go/internal/datasource"
)

func TestBuildRequestGetEncodesUserAsBase64Path(t *testing.T) {
	plan := datasource.BuildRequest("https://example.com", "/msdk/evalx/users", "/msdk/evalx/user", []byte(`{"key":"u1"}`), false, false, "cred")

	assert.Equal(t, http.MethodGet, plan.Method)
	encoded := base64.RawURLEncoding.EncodeToString([]byte(`{"key":"u1"}`))
	assert.Equal(t, "https://example.com/msdk/evalx/users/"+encoded, plan.URL)
	assert.Equal(t, "cred", plan.Headers.Get("Authorization"))
}

func TestBuildRequestReportSendsUserAsBody(t *testing.T) {
	body := []byte(`{"key":"u1"}`)
	plan := datasource.BuildRequest("https://example.com", "/msdk/evalx/users", "/msdk/evalx/user", body, true, false, "cred")

	assert.Equal(t, "REPORT", plan.Method)
	assert.Equal(t, "https://example.com/msdk/evalx/user", plan.URL)
	assert.Equal(t, body, plan.Body)
	assert.Equal(t, "application/json", plan.Headers.Get("Content-Type"))
}

func TestBuildRequestAppendsWithReasonsQueryParam(t *testing.T) {
	plan := datasource.BuildRequest("https://example.com", "/p", "/r", []byte("{}"), true, true, "cred")
	assert.Contains(t, plan.URL, "?withReasons=true")
}
