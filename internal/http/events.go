package http

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/validation"
)

const (
	eventBuffer    = 16
	heartbeatEvery = 15 * time.Second
)

// events streams remote change events as server-sent events until the
// client goes away. The unit and equipment query parameters narrow the
// stream to one unit or one piece of equipment.
func (h *handler) events(c *fiber.Ctx) error {
	if h.feed == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": h.localizer(c).Message("error.realtime_disabled")})
	}
	filter, err := eventFilter(c)
	if err != nil {
		return h.fail(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	connID := uuid.NewString()
	ch := make(chan domain.ChangeEvent, eventBuffer)
	cancel := h.feed.Listen(filter, func(ev domain.ChangeEvent) {
		select {
		case ch <- ev:
		default:
			log.Warn().Str("conn", connID).Msg("event stream too slow, dropping change event")
		}
	})

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		log.Debug().Str("conn", connID).Msg("event stream opened")

		fmt.Fprintf(w, "event: connected\ndata: {\"connectionId\":%q}\n\n", connID)
		if err := w.Flush(); err != nil {
			return
		}

		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case ev := <-ch:
				if err := writeEvent(w, ev); err != nil {
					log.Debug().Err(err).Str("conn", connID).Msg("event stream closed")
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": ping\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

func eventFilter(c *fiber.Ctx) (domain.Filter, error) {
	f := domain.Filter{Unit: domain.Unit(c.Query("unit")), Equipment: c.Query("equipment")}
	var errs validation.Errors
	if f.Unit != "" && !f.Unit.Valid() {
		errs = append(errs, &validation.FieldError{Field: "unit", Code: validation.CodeInvalid})
	}
	if f.Equipment != "" {
		if _, ok := domain.LookupEquipment(f.Equipment); !ok {
			errs = append(errs, &validation.FieldError{Field: "equipment", Code: validation.CodeInvalid})
		}
	}
	if len(errs) > 0 {
		return f, errs
	}
	return f, nil
}

func writeEvent(w *bufio.Writer, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.EventType, payload)
	return w.Flush()
}
