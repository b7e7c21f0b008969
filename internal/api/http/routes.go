package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/i474232898/weather-widget/internal/controller"
	"github.com/i474232898/weather-widget/internal/render"
	"github.com/i474232898/weather-widget/internal/store"
	"github.com/i474232898/weather-widget/internal/weather"
)

var validate = validator.New()

const (
	profileCookie = "ww_profile"
	profileMaxAge = 365 * 24 * 60 * 60

	// DefaultKeepAlive is the interval of comment frames on idle event streams.
	DefaultKeepAlive = 15 * time.Second
)

// ControllerFactory builds an unstarted controller for a new session.
// clientIP is the address of the browser that opened it, for device location.
type ControllerFactory func(clientIP string, unit weather.Unit) *controller.Controller

// Handler serves the session API. Each session owns one controller; the
// handlers only forward intents to it and render its state.
type Handler struct {
	ctx           context.Context
	sessions      *store.SessionStore
	prefs         *store.PrefsStore
	newController ControllerFactory
	logger        *zap.Logger

	// DefaultUnit applies to profiles without a stored unit.
	DefaultUnit weather.Unit
	// KeepAlive is the interval of comment frames on idle event streams.
	KeepAlive time.Duration
	now       func() time.Time
}

// NewHandler creates a Handler. Sessions run until ctx is cancelled. prefs may
// be nil, in which case preferences are not persisted.
func NewHandler(ctx context.Context, sessions *store.SessionStore, prefs *store.PrefsStore, factory ControllerFactory, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		ctx:           ctx,
		sessions:      sessions,
		prefs:         prefs,
		newController: factory,
		logger:        logger,
		DefaultUnit:   weather.Celsius,
		KeepAlive:     DefaultKeepAlive,
		now:           time.Now,
	}
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, h *Handler) {
	v1 := app.Group("/api/v1")

	v1.Post("/sessions", h.createSession)

	s := v1.Group("/sessions/:id")
	s.Get("/", h.getSession)
	s.Delete("/", h.deleteSession)
	s.Post("/search", h.search)
	s.Post("/submit", h.submit)
	s.Post("/select", h.selectPlace)
	s.Post("/locate", h.locate)
	s.Post("/refresh", h.refresh)
	s.Put("/units", h.setUnit)
	s.Put("/theme", h.setTheme)
	s.Get("/events", h.events)
}

type sessionResponse struct {
	ID      string      `json:"id"`
	Profile string      `json:"profile"`
	Theme   string      `json:"theme"`
	View    render.View `json:"view"`
}

// queryRequest is the body of search and submit.
type queryRequest struct {
	Query string `json:"query" validate:"max=200"`
}

// placeRequest is the body of select.
type placeRequest struct {
	ID        int64    `json:"id"`
	Name      string   `json:"name" validate:"required,max=200"`
	Admin1    string   `json:"admin1"`
	Country   string   `json:"country"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	TimeZone  string   `json:"timezone"`
}

func (p placeRequest) toPlace() weather.Place {
	return weather.Place{
		ID:        p.ID,
		Name:      p.Name,
		Admin1:    p.Admin1,
		Country:   p.Country,
		Latitude:  *p.Latitude,
		Longitude: *p.Longitude,
		TimeZone:  p.TimeZone,
	}
}

type unitRequest struct {
	Unit string `json:"unit" validate:"required"`
}

type themeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=light dark"`
}

// bind parses and validates a JSON body.
func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func (h *Handler) createSession(c *fiber.Ctx) error {
	profile := c.Cookies(profileCookie)
	if _, err := uuid.Parse(profile); err != nil {
		profile = uuid.NewString()
	}
	c.Cookie(&fiber.Cookie{
		Name:     profileCookie,
		Value:    profile,
		Path:     "/",
		MaxAge:   profileMaxAge,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	prefs := h.preferences(c.UserContext(), profile)
	sess := h.sessions.Create(h.ctx, profile, h.newController(c.IP(), prefs.Unit))

	return c.Status(fiber.StatusCreated).JSON(sessionResponse{
		ID:      sess.ID,
		Profile: profile,
		Theme:   prefs.Theme,
		View:    h.view(sess),
	})
}

func (h *Handler) getSession(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(sessionResponse{
		ID:      sess.ID,
		Profile: sess.Profile,
		Theme:   h.preferences(c.UserContext(), sess.Profile).Theme,
		View:    h.view(sess),
	})
}

func (h *Handler) deleteSession(c *fiber.Ctx) error {
	if err := h.sessions.Delete(c.Params("id")); err != nil {
		return notFound(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) search(c *fiber.Ctx) error {
	var req queryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.intent(c, func(ctrl *controller.Controller) { ctrl.SubmitSearchText(req.Query) })
}

func (h *Handler) submit(c *fiber.Ctx) error {
	var req queryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.intent(c, func(ctrl *controller.Controller) { ctrl.SubmitSearch(req.Query) })
}

func (h *Handler) selectPlace(c *fiber.Ctx) error {
	var req placeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return h.intent(c, func(ctrl *controller.Controller) { ctrl.SelectPlace(req.toPlace()) })
}

func (h *Handler) locate(c *fiber.Ctx) error {
	return h.intent(c, (*controller.Controller).RequestDeviceLocation)
}

func (h *Handler) refresh(c *fiber.Ctx) error {
	return h.intent(c, (*controller.Controller).Refresh)
}

func (h *Handler) setUnit(c *fiber.Ctx) error {
	var req unitRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	unit, err := weather.ParseUnit(req.Unit)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	sess, err := h.session(c)
	if err != nil {
		return err
	}
	sess.Controller.ToggleUnits(unit)
	if h.prefs != nil {
		if err := h.prefs.SaveUnit(c.UserContext(), sess.Profile, unit); err != nil {
			h.logger.Error("failed to save unit", zap.String("profile", sess.Profile), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save preferences")
		}
	}
	return c.JSON(h.view(sess))
}

func (h *Handler) setTheme(c *fiber.Ctx) error {
	var req themeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	if h.prefs != nil {
		if err := h.prefs.SaveTheme(c.UserContext(), sess.Profile, req.Theme); err != nil {
			h.logger.Error("failed to save theme", zap.String("profile", sess.Profile), zap.Error(err))
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save preferences")
		}
	}
	return c.JSON(fiber.Map{"theme": req.Theme})
}

// events streams the session's views as server-sent events until the
// session ends or the client goes away.
func (h *Handler) events(c *fiber.Ctx) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(h.ctx)
	events := sess.Controller.Subscribe(ctx)
	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, render.NewView(ev, h.now())); err != nil {
					h.logger.Debug("event stream closed", zap.String("session", sess.ID), zap.Error(err))
					return
				}
				h.sessions.Touch(sess.ID)
			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
				h.sessions.Touch(sess.ID)
			}
		}
	}))
	return nil
}

func writeEvent(w *bufio.Writer, v render.View) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode view: %w", err)
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: state\ndata: %s\n\n", v.Seq, data); err != nil {
		return err
	}
	return w.Flush()
}

// intent forwards an intent to the session's controller and answers with
// the resulting view. Intents are applied before they return, so the view
// already reflects the immediate transition.
func (h *Handler) intent(c *fiber.Ctx, fn func(*controller.Controller)) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	fn(sess.Controller)
	return c.Status(fiber.StatusAccepted).JSON(h.view(sess))
}

func (h *Handler) session(c *fiber.Ctx) (*store.Session, error) {
	sess, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return nil, notFound(err)
	}
	return sess, nil
}

func (h *Handler) view(sess *store.Session) render.View {
	return render.NewView(sess.Controller.Latest(), h.now())
}

// preferences returns the stored preferences of profile, or the defaults.
func (h *Handler) preferences(ctx context.Context, profile string) store.Preferences {
	defaults := store.Preferences{Profile: profile, Unit: h.DefaultUnit, Theme: store.ThemeLight}
	if h.prefs == nil {
		return defaults
	}
	prefs, err := h.prefs.Get(ctx, profile)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("failed to load preferences", zap.String("profile", profile), zap.Error(err))
		}
		return defaults
	}
	return prefs
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
