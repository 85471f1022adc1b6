package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindContext(body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func TestBindRooted(t *testing.T) {
	cases := []struct {
		name string
		body string
		want companyRequest
	}{
		{"wrapped", `{"company":{"name":"Sky"}}`, companyRequest{Name: ptr("Sky")}},
		{"bare", `{"name":"Sky"}`, companyRequest{Name: ptr("Sky")}},
		{"root key that is not an object binds bare", `{"company":"x","name":"Sky"}`, companyRequest{Name: ptr("Sky")}},
		{"empty body", ``, companyRequest{}},
		{"whitespace body", "  \n", companyRequest{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, w := bindContext(tc.body)
			var got companyRequest
			require.True(t, bindRooted(c, "company", &got))
			assert.Equal(t, tc.want, got)
			assert.False(t, c.IsAborted())
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestBindRooted_Malformed(t *testing.T) {
	for _, body := range []string{`{"name":`, `[1,2]`, `{"company":{"name":42}}`, `{"name":42}`} {
		t.Run(body, func(t *testing.T) {
			c, w := bindContext(body)
			var got companyRequest
			assert.False(t, bindRooted(c, "company", &got))
			assert.True(t, c.IsAborted())
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"errors":{"body":["is malformed"]}}`, w.Body.String())
		})
	}
}

func TestBindRooted_BodyStaysReadable(t *testing.T) {
	c, _ := bindContext(`{"name":"Sky"}`)
	var first, second companyRequest
	require.True(t, bindRooted(c, "company", &first))
	require.True(t, bindRooted(c, "company", &second))
	assert.Equal(t, first, second)
}

func ptr[T any](v T) *T { return &v }
