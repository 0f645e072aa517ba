package handler

import "github.com/labstack/echo/v4"

// envelope is the canonical success shape: {"status":true,"data":...}.
// Errors never pass through here; they are rendered by the central error
// handler as {"status":false,"reason":...}.
type envelope struct {
	Status bool `json:"status"`
	Data   any  `json:"data,omitempty"`
}

func ok(c echo.Context, code int, data any) error {
	return c.JSON(code, envelope{Status: true, Data: data})
}
