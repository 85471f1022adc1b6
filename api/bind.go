package api

import (
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// bindRooted decodes the request body into dst. The payload may be wrapped
// in a root key ({"flight": {...}}) or sent bare. An empty body binds nothing.
func bindRooted(c *gin.Context, root string, dst any) bool {
	var envelope map[string]json.RawMessage
	if err := c.ShouldBindBodyWithJSON(&envelope); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		badRequest(c, "body", "is malformed")
		return false
	}

	var err error
	if inner, ok := envelope[root]; ok && len(inner) > 0 && inner[0] == '{' {
		err = binding.JSON.BindBody(inner, dst)
	} else {
		err = c.ShouldBindBodyWithJSON(dst)
	}
	if err != nil {
		badRequest(c, "body", "is malformed")
		return false
	}
	return true
}

// pathID parses :id. A malformed id cannot name a record, so it is a 404.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, domain.ErrNotFound)
		return 0, false
	}
	return id, true
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

func queryInt64(c *gin.Context, key string) (*int64, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, key, "is not a number")
		return nil, false
	}
	return &v, true
}

func queryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw, ok := c.GetQuery(key)
	if !ok || raw == "" {
		return nil, true
	}
	v, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		badRequest(c, key, "is not a valid time")
		return nil, false
	}
	return &v, true
}
