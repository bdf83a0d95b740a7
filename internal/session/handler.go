package session

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/thevault/vault/internal/auth"
	"github.com/thevault/vault/internal/capture"
	"github.com/thevault/vault/internal/dashboard"
	"github.com/thevault/vault/internal/identity"
	"github.com/thevault/vault/internal/tracking"
	"github.com/thevault/vault/internal/verification"
)

const (
	eventBuffer       = 16
	heartbeatInterval = 15 * time.Second
	// streamWriteWindow replaces the server WriteTimeout for event streams;
	// it is pushed forward on every write.
	streamWriteWindow = 2 * heartbeatInterval
)

// deadlineSetter is the part of net.Conn the event stream needs.
type deadlineSetter interface {
	SetWriteDeadline(t time.Time) error
}

// extendWriteDeadline moves the connection write deadline window ahead. The
// server-wide WriteTimeout is armed once per response and would otherwise
// cut long-lived event streams.
func extendWriteDeadline(conn deadlineSetter, window time.Duration) {
	if conn != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(window))
	}
}

// Handler exposes session HTTP endpoints.
type Handler struct {
	manager *Manager
	issuer  *auth.TokenIssuer
	logger  *slog.Logger
}

// NewHandler builds a session HTTP handler.
func NewHandler(manager *Manager, issuer *auth.TokenIssuer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{manager: manager, issuer: issuer, logger: logger}
}

type createResponse struct {
	SessionID string              `json:"session_id"`
	Token     string              `json:"token"`
	Status    verification.Status `json:"status"`
	ExpiresIn int64               `json:"expires_in"`
}

type viewResponse struct {
	Session verification.View `json:"session"`
	Screen  dashboard.Screen  `json:"screen"`
}

type identityRequest struct {
	DisplayName   string `json:"display_name"`
	WalletAddress string `json:"wallet_address"`
}

type engineRequest struct {
	State  string `json:"state"`
	Reason string `json:"reason"`
}

type frameRequest struct {
	Faces [][]tracking.Landmark `json:"faces"`
	Frame string                `json:"frame"`
}

// Create opens a new session and returns its bearer token.
func (h *Handler) Create(c *fiber.Ctx) error {
	s, err := h.manager.Create(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	token, err := h.issuer.Issue(s.ID)
	if err != nil {
		_ = h.manager.Close(s.ID)
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(createResponse{
		SessionID: s.ID,
		Token:     token,
		Status:    s.Machine.Status(),
		ExpiresIn: int64(h.issuer.TTL().Seconds()),
	})
}

// Get returns the session view and the scanner panel copy.
func (h *Handler) Get(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return h.view(c, s)
}

// Delete tears the session down.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.manager.Close(c.Params("sessionId")); err != nil {
		return httpError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// SubmitIdentity moves the session from identity entry to idle.
func (h *Handler) SubmitIdentity(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req identityRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	u := identity.UserIdentity{DisplayName: req.DisplayName, WalletAddress: req.WalletAddress}
	if err := s.Machine.SubmitIdentity(u); err != nil {
		return httpError(err)
	}
	return h.view(c, s)
}

// Engine relays a tracker lifecycle report from the browser.
func (h *Handler) Engine(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req engineRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	state, err := tracking.ParseEngineState(req.State)
	if err != nil {
		return httpError(err)
	}
	if err := s.Engine.Report(state, req.Reason); err != nil {
		return httpError(err)
	}
	return c.SendStatus(http.StatusAccepted)
}

// Frames accepts one tracker detection with an optional camera frame.
func (h *Handler) Frames(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	var req frameRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	d := tracking.Detection{Faces: req.Faces, At: time.Now().UTC()}
	if req.Frame != "" {
		frame, err := capture.DecodeDataURL(req.Frame)
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		d.Frame = frame
	}
	if err := s.Engine.Push(d); err != nil {
		return httpError(err)
	}
	return c.SendStatus(http.StatusAccepted)
}

// Start begins the challenge sequence.
func (h *Handler) Start(c *fiber.Ctx) error {
	return h.transition(c, (*verification.Machine).Start)
}

// Reset returns a finished session to identity entry.
func (h *Handler) Reset(c *fiber.Ctx) error {
	return h.transition(c, (*verification.Machine).Reset)
}

// Retry returns a finished session to idle with the same identity.
func (h *Handler) Retry(c *fiber.Ctx) error {
	return h.transition(c, (*verification.Machine).Retry)
}

// Feed returns the system log and neural-feed gauges.
func (h *Handler) Feed(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"lines":   s.Feed.Lines(),
		"metrics": dashboard.Metrics(),
	})
}

// Events streams status changes as server-sent events until the session
// closes or the client goes away.
func (h *Handler) Events(c *fiber.Ctx) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	events, release := s.Machine.Subscribe(eventBuffer)
	initial := viewResponse{Session: s.Machine.View()}
	initial.Screen = dashboard.Render(initial.Session)
	logger := h.logger.With(slog.String("session_id", s.ID))
	var conn deadlineSetter
	if nc := c.Context().Conn(); nc != nil {
		conn = nc
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer release()
		extendWriteDeadline(conn, streamWriteWindow)
		if err := writeEvent(w, "view", initial); err != nil {
			return
		}
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					_ = writeEvent(w, "closed", fiber.Map{"session_id": s.ID})
					return
				}
				s.Touch()
				extendWriteDeadline(conn, streamWriteWindow)
				if err := writeEvent(w, "status", ev); err != nil {
					logger.Debug("event stream closed", slog.Any("error", err))
					return
				}
			case <-heartbeat.C:
				extendWriteDeadline(conn, streamWriteWindow)
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

func writeEvent(w *bufio.Writer, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return w.Flush()
}

func (h *Handler) transition(c *fiber.Ctx, fn func(*verification.Machine) error) error {
	s, err := h.session(c)
	if err != nil {
		return err
	}
	if err := fn(s.Machine); err != nil {
		return httpError(err)
	}
	return h.view(c, s)
}

func (h *Handler) session(c *fiber.Ctx) (*Session, error) {
	s, err := h.manager.Get(c.Params("sessionId"))
	if err != nil {
		return nil, httpError(err)
	}
	return s, nil
}

func (h *Handler) view(c *fiber.Ctx, s *Session) error {
	v := s.Machine.View()
	return c.Status(http.StatusOK).JSON(viewResponse{Session: v, Screen: dashboard.Render(v)})
}

// httpError maps domain errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, verification.ErrClosed), errors.Is(err, tracking.ErrEngineStopped):
		return fiber.NewError(http.StatusGone, err.Error())
	case errors.Is(err, identity.ErrInvalidName),
		errors.Is(err, identity.ErrInvalidWallet),
		errors.Is(err, tracking.ErrUnknownState):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, verification.ErrInvalidTransition),
		errors.Is(err, verification.ErrNoFace),
		errors.Is(err, verification.ErrEngineNotReady):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
