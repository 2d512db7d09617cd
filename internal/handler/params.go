package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/presenca-api/pkg/errors"
	"github.com/noah-isme/presenca-api/pkg/response"
	"github.com/noah-isme/presenca-api/pkg/timeutil"
)

// idParam parses an integer path parameter. Non-numeric values answer 400; ids below 1
// can never have been issued by the sequence and answer 404 without a store round trip.
func idParam(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		response.Error(c, appErrors.Validation(err, fmt.Sprintf("invalid %s %q", name, raw)))
		return 0, false
	}
	if id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no record with %s %d", name, id)))
		return 0, false
	}
	return id, true
}

func dateValue(c *gin.Context, name, raw string, loc *time.Location) (time.Time, bool) {
	day, err := timeutil.ParseDate(raw, loc)
	if err != nil {
		response.Error(c, appErrors.Validation(err, fmt.Sprintf("invalid %s %q, expected %s", name, raw, timeutil.DateLayout)))
		return time.Time{}, false
	}
	return day, true
}

func bindError(err error) *appErrors.Error {
	return appErrors.Validation(err, "invalid payload")
}
