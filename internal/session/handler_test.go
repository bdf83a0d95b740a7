package session

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/thevault/vault/internal/auth"
	"github.com/thevault/vault/internal/logging"
	"github.com/thevault/vault/internal/middleware"
	"github.com/thevault/vault/internal/verification"
)

func setupHandlerApp(t *testing.T) *fiber.App {
	t.Helper()
	m := newTestManager(t, nil, nil)
	issuer, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	h := NewHandler(m, issuer, logging.Discard())

	app := fiber.New()
	app.Post("/sessions", h.Create)
	sess := app.Group("/sessions/:sessionId", middleware.SessionAuth(issuer))
	sess.Get("", h.Get)
	sess.Delete("", h.Delete)
	sess.Post("/identity", h.SubmitIdentity)
	sess.Post("/engine", h.Engine)
	sess.Post("/frames", h.Frames)
	sess.Post("/start", h.Start)
	sess.Post("/reset", h.Reset)
	sess.Post("/retry", h.Retry)
	sess.Get("/feed", h.Feed)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, token, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

func createSession(t *testing.T, app *fiber.App) createResponse {
	t.Helper()
	status, body := call(t, app, fiber.MethodPost, "/sessions", "", "")
	if status != fiber.StatusCreated {
		t.Fatalf("create session: %d %s", status, body)
	}
	var out createResponse
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SessionID == "" || out.Token == "" {
		t.Fatalf("incomplete create response %+v", out)
	}
	return out
}

func getView(t *testing.T, app *fiber.App, s createResponse) viewResponse {
	t.Helper()
	status, body := call(t, app, fiber.MethodGet, "/sessions/"+s.SessionID, s.Token, "")
	if status != fiber.StatusOK {
		t.Fatalf("get session: %d %s", status, body)
	}
	var v viewResponse
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func TestSessionFlowOverHTTP(t *testing.T) {
	app := setupHandlerApp(t)
	s := createSession(t, app)
	base := "/sessions/" + s.SessionID

	if status, body := call(t, app, fiber.MethodPost, base+"/start", s.Token, ""); status != fiber.StatusConflict {
		t.Fatalf("start before identity: expected 409 got %d %s", status, body)
	}
	if status, _ := call(t, app, fiber.MethodPost, base+"/identity", s.Token, `{"display_name":"Al","wallet_address":"0x`+strings.Repeat("a", 40)+`"}`); status != fiber.StatusBadRequest {
		t.Fatalf("short name: expected 400 got %d", status)
	}
	status, body := call(t, app, fiber.MethodPost, base+"/identity", s.Token, `{"display_name":"Ada Lovelace","wallet_address":"0x`+strings.Repeat("a", 40)+`"}`)
	if status != fiber.StatusOK {
		t.Fatalf("identity: %d %s", status, body)
	}

	frame := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(testFrame(t))
	status, body = call(t, app, fiber.MethodPost, base+"/frames", s.Token, `{"faces":[[{"x":0.5,"y":0.5,"z":0}]],"frame":"`+frame+`"}`)
	if status != fiber.StatusAccepted {
		t.Fatalf("frames: %d %s", status, body)
	}
	waitFor(t, func() bool { return getView(t, app, s).Session.CanStart })

	v := getView(t, app, s)
	if v.Session.FirstName != "Ada" || v.Session.ShortWallet != "0xaaaa...aaaa" {
		t.Fatalf("unexpected greeting fields %+v", v.Session)
	}

	if status, body := call(t, app, fiber.MethodPost, base+"/start", s.Token, ""); status != fiber.StatusOK {
		t.Fatalf("start: %d %s", status, body)
	}
	waitFor(t, func() bool { return getView(t, app, s).Session.Status == verification.StatusSuccess })

	v = getView(t, app, s)
	if v.Session.Verdict == nil || !v.Session.Verdict.IsReal {
		t.Fatalf("expected real verdict, got %+v", v.Session.Verdict)
	}
	if v.Screen.Title == "" {
		t.Fatal("expected success screen copy")
	}

	status, body = call(t, app, fiber.MethodPost, base+"/retry", s.Token, "")
	if status != fiber.StatusOK {
		t.Fatalf("retry: %d %s", status, body)
	}
	if got := getView(t, app, s).Session; got.Status != verification.StatusIdle || got.DisplayName != "Ada Lovelace" {
		t.Fatalf("retry should keep identity in idle, got %+v", got)
	}

	status, body = call(t, app, fiber.MethodGet, base+"/feed", s.Token, "")
	if status != fiber.StatusOK || !strings.Contains(string(body), "Jitter") {
		t.Fatalf("feed: %d %s", status, body)
	}

	if status, _ := call(t, app, fiber.MethodDelete, base, s.Token, ""); status != fiber.StatusNoContent {
		t.Fatalf("delete: expected 204 got %d", status)
	}
	if status, _ := call(t, app, fiber.MethodGet, base, s.Token, ""); status != fiber.StatusNotFound {
		t.Fatalf("get after delete: expected 404 got %d", status)
	}
}

func TestSessionRoutesRequireMatchingToken(t *testing.T) {
	app := setupHandlerApp(t)
	a := createSession(t, app)
	b := createSession(t, app)

	if status, _ := call(t, app, fiber.MethodGet, "/sessions/"+a.SessionID, "", ""); status != fiber.StatusUnauthorized {
		t.Fatalf("missing token: expected 401 got %d", status)
	}
	if status, _ := call(t, app, fiber.MethodGet, "/sessions/"+a.SessionID, "garbage", ""); status != fiber.StatusUnauthorized {
		t.Fatalf("bad token: expected 401 got %d", status)
	}
	if status, _ := call(t, app, fiber.MethodGet, "/sessions/"+a.SessionID, b.Token, ""); status != fiber.StatusForbidden {
		t.Fatalf("foreign token: expected 403 got %d", status)
	}
}

func TestEngineDenialBlocksScreen(t *testing.T) {
	app := setupHandlerApp(t)
	s := createSession(t, app)
	base := "/sessions/" + s.SessionID

	if status, _ := call(t, app, fiber.MethodPost, base+"/engine", s.Token, `{"state":"sleeping"}`); status != fiber.StatusBadRequest {
		t.Fatalf("unknown state: expected 400 got %d", status)
	}
	status, body := call(t, app, fiber.MethodPost, base+"/engine", s.Token, `{"state":"denied","reason":"camera permission refused"}`)
	if status != fiber.StatusAccepted {
		t.Fatalf("engine: %d %s", status, body)
	}
	waitFor(t, func() bool { return getView(t, app, s).Session.Engine == "denied" })
	v := getView(t, app, s)
	if v.Screen.Detail != v.Session.EngineMessage || v.Screen.Detail == "" {
		t.Fatalf("expected engine message to take the screen, got %+v", v.Screen)
	}
}

func TestFramesRejectsBadPayload(t *testing.T) {
	app := setupHandlerApp(t)
	s := createSession(t, app)
	status, _ := call(t, app, fiber.MethodPost, "/sessions/"+s.SessionID+"/frames", s.Token, `{"frame":"data:image/jpeg;base64,%%%"}`)
	if status != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for undecodable frame, got %d", status)
	}
}

func TestWriteEventFormatsServerSentEvent(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	ev := verification.Event{Status: verification.StatusScanning, Previous: verification.StatusIdle}
	if err := writeEvent(w, "status", ev); err != nil {
		t.Fatalf("write event: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "event: status\ndata: {") || !strings.HasSuffix(out, "}\n\n") {
		t.Fatalf("unexpected event framing %q", out)
	}
	if !strings.Contains(out, `"status":"scanning"`) {
		t.Fatalf("expected status in payload, got %q", out)
	}
}

type recordingConn struct {
	deadlines []time.Time
}

func (r *recordingConn) SetWriteDeadline(t time.Time) error {
	r.deadlines = append(r.deadlines, t)
	return nil
}

func TestExtendWriteDeadlineMovesWindowForward(t *testing.T) {
	conn := &recordingConn{}
	before := time.Now()
	extendWriteDeadline(conn, streamWriteWindow)
	extendWriteDeadline(conn, streamWriteWindow)
	if len(conn.deadlines) != 2 {
		t.Fatalf("expected a deadline per write, got %d", len(conn.deadlines))
	}
	if conn.deadlines[0].Before(before.Add(streamWriteWindow)) {
		t.Fatalf("deadline %v is not a full window ahead", conn.deadlines[0])
	}
	if conn.deadlines[1].Before(conn.deadlines[0]) {
		t.Fatal("deadline must not move backwards")
	}
	if streamWriteWindow <= heartbeatInterval {
		t.Fatal("write window must outlast the heartbeat interval")
	}
	extendWriteDeadline(nil, streamWriteWindow)
}
