package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"lease-service/pkg/logger"
)

func Hello(c echo.Context) error {
	log := logger.FromEcho(c)
	log.Info("Hello from lease-service")
	return c.JSON(http.StatusOK, echo.Map{"message": "hello from lease"})
}
