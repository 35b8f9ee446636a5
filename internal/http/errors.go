package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/service"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/validation"
)

type fieldMessage struct {
	Field   string          `json:"field"`
	Code    validation.Code `json:"code"`
	Message string          `json:"message"`
}

func (h *handler) badRequest(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": h.localizer(c).Message("error.bad_request")})
}

// fail renders err with a localized message and the status its kind maps to.
func (h *handler) fail(c *fiber.Ctx, err error) error {
	loc := h.localizer(c)

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make([]fieldMessage, len(verrs))
		for i, fe := range verrs {
			fields[i] = fieldMessage{Field: fe.Field, Code: fe.Code, Message: loc.FieldError(fe)}
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": loc.Error(err), "fields": fields})
	}
	if errors.Is(err, service.ErrCloudDisabled) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": loc.Message("error.cloud_disabled")})
	}

	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": loc.Error(err), "code": codeFor(err)})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	}
	switch domain.RemoteKind(err) {
	case domain.KindAuthRequired:
		return fiber.StatusUnauthorized
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindConflict:
		return fiber.StatusConflict
	case domain.KindNetworkUnreachable, domain.KindUnknown:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func codeFor(err error) string {
	var storageErr *domain.StorageError
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		return "sync_in_progress"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.As(err, &storageErr):
		return "storage"
	}
	if kind := domain.RemoteKind(err); kind != "" {
		return string(kind)
	}
	return "unknown"
}
