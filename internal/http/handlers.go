package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/ANIKETSHETTY47/vibration-monitor/internal/auth"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/domain"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/i18n"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/metrics"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/service"
	"github.com/ANIKETSHETTY47/vibration-monitor/internal/validation"
)

// ChangeFeed delivers remote change events matching a filter;
// realtime.Feed implements it.
type ChangeFeed interface {
	Listen(filter domain.Filter, fn func(domain.ChangeEvent)) func()
}

// Options carries the collaborators beyond the services. Feed may be nil.
type Options struct {
	Session *auth.Session
	Feed    ChangeFeed
	Locale  string
}

type handler struct {
	svcs    *service.Services
	session *auth.Session
	feed    ChangeFeed
	locale  string
}

func Register(app *fiber.App, svcs *service.Services, opts Options) {
	h := &handler{svcs: svcs, session: opts.Session, feed: opts.Feed, locale: opts.Locale}

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	app.Post("/session", h.signIn)
	app.Delete("/session", h.signOut)

	app.Post("/records", h.saveRecord)
	app.Get("/records", h.listRecords)
	app.Delete("/records/:id", h.deleteRecord)

	app.Post("/sync", h.sync)
	app.Get("/sync/status", h.syncStatus)

	app.Get("/analysis", h.runAnalysis)
	app.Post("/analysis/export", h.exportAnalysis)

	app.Get("/stats", h.stats)
	app.Get("/settings", h.getSettings)
	app.Put("/settings", h.saveSettings)
	app.Delete("/local", h.clearLocal)

	app.Get("/events", h.events)
}

func (h *handler) localizer(c *fiber.Ctx) *i18n.Localizer {
	if lang := c.Get(fiber.HeaderAcceptLanguage); lang != "" {
		return i18n.New(lang)
	}
	return i18n.New(h.locale)
}

func (h *handler) signIn(c *fiber.Ctx) error {
	var u auth.User
	if err := c.BodyParser(&u); err != nil {
		return h.badRequest(c)
	}
	if u.ID == "" {
		return h.fail(c, validation.Errors{{Field: "id", Code: validation.CodeRequired}})
	}
	h.session.SignIn(u)
	return c.JSON(u)
}

func (h *handler) signOut(c *fiber.Ctx) error {
	h.session.SignOut()
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handler) saveRecord(c *fiber.Ctx) error {
	var e service.Entry
	if err := c.BodyParser(&e); err != nil {
		return h.badRequest(c)
	}
	rec, err := h.svcs.Records.Save(c.UserContext(), e)
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

func (h *handler) listRecords(c *fiber.Ctx) error {
	var f domain.Filter
	if err := c.QueryParser(&f); err != nil {
		return h.badRequest(c)
	}
	recs, err := h.svcs.Records.Query(c.UserContext(), f, c.QueryBool("remote", true))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(recs)
}

func (h *handler) deleteRecord(c *fiber.Ctx) error {
	if err := h.svcs.Records.Delete(c.UserContext(), c.Params("id")); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": h.localizer(c).Message("record.deleted")})
}

func (h *handler) sync(c *fiber.Ctx) error {
	res, err := h.svcs.Sync.SyncToServer(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	loc := h.localizer(c)
	msg := loc.Message("sync.done", res.SyncedCount)
	if res.SyncedCount == 0 && len(res.Errors) == 0 {
		msg = loc.Message("sync.none")
	}
	return c.JSON(fiber.Map{
		"syncedCount": res.SyncedCount,
		"errors":      res.Errors,
		"message":     msg,
	})
}

func (h *handler) syncStatus(c *fiber.Ctx) error {
	st, err := h.svcs.Sync.Status(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(st)
}

type alertView struct {
	domain.AnalysisAlert
	RecommendationText string `json:"recommendationText"`
}

type analysisResponse struct {
	*service.AnalysisResult
	Alerts []alertView       `json:"alerts"`
	Advice []i18n.GlobalText `json:"advice"`
	URL    string            `json:"url,omitempty"`
}

func (h *handler) renderAnalysis(c *fiber.Ctx, res *service.AnalysisResult, url string) error {
	loc := h.localizer(c)
	out := analysisResponse{
		AnalysisResult: res,
		Alerts:         make([]alertView, len(res.Alerts)),
		Advice:         make([]i18n.GlobalText, len(res.Recommendations)),
		URL:            url,
	}
	for i, a := range res.Alerts {
		out.Alerts[i] = alertView{AnalysisAlert: a, RecommendationText: loc.Recommendation(a.Recommendation)}
	}
	for i, r := range res.Recommendations {
		out.Advice[i] = loc.Global(r)
	}
	return c.JSON(out)
}

func (h *handler) runAnalysis(c *fiber.Ctx) error {
	res, err := h.svcs.Analysis.Run(c.UserContext(), domain.Unit(c.Query("unit")), c.QueryInt("days", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return h.renderAnalysis(c, res, "")
}

func (h *handler) exportAnalysis(c *fiber.Ctx) error {
	res, url, err := h.svcs.Analysis.Export(c.UserContext(), domain.Unit(c.Query("unit")), c.QueryInt("days", 0))
	if err != nil {
		return h.fail(c, err)
	}
	return h.renderAnalysis(c, res, url)
}

func (h *handler) stats(c *fiber.Ctx) error {
	st, err := h.svcs.Stats.Stats(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(st)
}

func (h *handler) getSettings(c *fiber.Ctx) error {
	st, err := h.svcs.Settings.Get(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(st)
}

func (h *handler) saveSettings(c *fiber.Ctx) error {
	st := domain.DefaultSettings()
	if err := c.BodyParser(&st); err != nil {
		return h.badRequest(c)
	}
	if err := h.svcs.Settings.Save(c.UserContext(), st); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(st)
}

func (h *handler) clearLocal(c *fiber.Ctx) error {
	if err := h.svcs.Records.ClearLocal(c.UserContext()); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": h.localizer(c).Message("local.cleared")})
}
