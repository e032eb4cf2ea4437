package api

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEApplicationMsgpack is negotiated through the Accept header.
const MIMEApplicationMsgpack = "application/msgpack"

// respond writes v as msgpack when the client accepts it and as JSON
// otherwise. Struct fields keep their json names in both encodings.
func respond(c echo.Context, status int, v interface{}) error {
	if !wantsMsgpack(c) {
		return c.JSON(status, v)
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(status, MIMEApplicationMsgpack, buf.Bytes())
}

func wantsMsgpack(c echo.Context) bool {
	accept := c.Request().Header.Get(echo.HeaderAccept)
	return strings.Contains(accept, MIMEApplicationMsgpack) || strings.Contains(accept, "application/x-msgpack")
}

// parseTimestamp parses Unix milliseconds.
func parseTimestamp(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return msToTime(ms), nil
}

func msToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
