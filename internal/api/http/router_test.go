package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/fixmate-service/internal/api/http/handlers"
	"github.com/spec-kit/fixmate-service/internal/auth"
	"github.com/spec-kit/fixmate-service/internal/config"
	"github.com/spec-kit/fixmate-service/internal/events"
	"github.com/spec-kit/fixmate-service/internal/observability"
	"github.com/spec-kit/fixmate-service/internal/domain"
	"github.com/spec-kit/fixmate-service/internal/session"
	"github.com/spec-kit/fixmate-service/internal/store"
	"github.com/spec-kit/fixmate-service/internal/store/local"
	"github.com/spec-kit/fixmate-service/internal/summary"
	"github.com/spec-kit/fixmate-service/internal/worker"
	"github.com/spec-kit/fixmate-service/internal/workflow"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	st, err := local.Open("", bcrypt.MinCost, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return newTestAppWith(t, st)
}

func newTestAppWith(t *testing.T, st store.Store) *fiber.App {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	wf := workflow.NewService(st, events.NewInMemoryDispatcher(), logger)
	tokens := auth.NewTokenManager("test-secret", 5)
	sessions := session.NewManager(st, tokens)
	summarizer := summary.NewService(config.SummaryConfig{}, logger)

	poller := worker.NewIssuePoller(st, metrics, logger, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go poller.Run(ctx)
	require.Eventually(t, func() bool { return metrics.PollCount() >= 1 },
		2*time.Second, 10*time.Millisecond)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 10*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("test"),
		Auth:           handlers.NewAuthHandler(sessions),
		Issues:         handlers.NewIssuesHandler(wf),
		Admin:          handlers.NewAdminHandler(wf, summarizer, poller),
		Messages:       handlers.NewMessagesHandler(wf),
		AuthMiddleware: auth.NewMiddleware(tokens, st),
	})
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*stdhttp.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	payload := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp, payload
}

func login(t *testing.T, app *fiber.App, email, password string) string {
	t.Helper()
	resp, payload := doJSON(t, app, "POST", "/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(t, stdhttp.StatusOK, resp.StatusCode)
	data := payload["data"].(map[string]any)
	return data["auth"].(map[string]any)["token"].(string)
}

func Test_Health_Endpoints(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)

	resp, payload := doJSON(t, app, "GET", "/health/live", "", nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)
	req.Equal("ok", payload["status"])
	req.Equal("test", payload["version"])
}

func Test_Login_Rejects_Bad_Credentials(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)

	resp, payload := doJSON(t, app, "POST", "/auth/login", "", map[string]string{
		"email": "alice@res.com", "password": "wrong",
	})
	req.Equal(stdhttp.StatusUnauthorized, resp.StatusCode)
	data := payload["data"].(map[string]any)
	req.Equal(false, data["authenticated"])
}

func Test_Register_Validates_Role(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)

	resp, _ := doJSON(t, app, "POST", "/auth/register", "", map[string]string{
		"name": "Mallory", "email": "mallory@res.com", "password": "pw123", "role": "ADMIN",
	})
	req.Equal(stdhttp.StatusBadRequest, resp.StatusCode)
}

func Test_Protected_Routes_Require_Token_And_Role(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)

	resp, _ := doJSON(t, app, "GET", "/issues/mine", "", nil)
	req.Equal(stdhttp.StatusUnauthorized, resp.StatusCode)

	residentToken := login(t, app, "alice@res.com", "password")
	resp, _ = doJSON(t, app, "GET", "/admin/issues", residentToken, nil)
	req.Equal(stdhttp.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, "GET", "/issues/queue", residentToken, nil)
	req.Equal(stdhttp.StatusForbidden, resp.StatusCode)
}

func Test_Issue_Lifecycle_Over_HTTP(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)

	residentToken := login(t, app, "alice@res.com", "password")
	adminToken := login(t, app, "admin@fixmate.com", "admin")
	techToken := login(t, app, "tom@tech.com", "password")

	resp, payload := doJSON(t, app, "POST", "/issues", residentToken, map[string]string{
		"category": "Plumbing", "description": "leak under sink", "priority": "HIGH",
	})
	req.Equal(stdhttp.StatusCreated, resp.StatusCode)
	issue := payload["data"].(map[string]any)
	issueID := issue["id"].(string)
	req.Equal("OPEN", issue["status"])

	resp, payload = doJSON(t, app, "GET", "/issues/mine", residentToken, nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)
	mine := payload["data"].([]any)
	req.Equal(issueID, mine[0].(map[string]any)["id"])

	resp, _ = doJSON(t, app, "POST", "/admin/issues/"+issueID+"/assign", adminToken, map[string]string{
		"technicianId": "tech-1",
	})
	req.Equal(stdhttp.StatusOK, resp.StatusCode)

	resp, payload = doJSON(t, app, "GET", "/issues/queue", techToken, nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)
	queue := payload["data"].([]any)
	found := false
	for _, raw := range queue {
		if raw.(map[string]any)["id"] == issueID {
			found = true
			req.Equal("ASSIGNED", raw.(map[string]any)["status"])
			req.Equal("Tom Tech", raw.(map[string]any)["assignedToName"])
		}
	}
	req.True(found)

	resp, _ = doJSON(t, app, "POST", "/issues/"+issueID+"/start", techToken, nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)

	// Whitespace-only notes are rejected and the issue stays IN_PROGRESS.
	resp, payload = doJSON(t, app, "POST", "/issues/"+issueID+"/resolve", techToken, map[string]string{
		"notes": "   ",
	})
	req.Equal(stdhttp.StatusBadRequest, resp.StatusCode)
	errPayload := payload["error"].(map[string]any)
	req.Equal("VALIDATION_FAILED", errPayload["code"])

	resp, _ = doJSON(t, app, "POST", "/issues/"+issueID+"/resolve", techToken, map[string]string{
		"notes": "replaced the trap",
	})
	req.Equal(stdhttp.StatusOK, resp.StatusCode)

	resp, payload = doJSON(t, app, "GET", "/admin/issues?status=RESOLVED&q=sink", adminToken, nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)
	matches := payload["data"].([]any)
	req.Len(matches, 1)
	resolved := matches[0].(map[string]any)
	req.Equal(issueID, resolved["id"])
	req.Equal("replaced the trap", resolved["resolutionNotes"])

	// Unassign reverts to OPEN and keeps the notes.
	resp, _ = doJSON(t, app, "POST", "/admin/issues/"+issueID+"/assign", adminToken, map[string]string{
		"technicianId": "",
	})
	req.Equal(stdhttp.StatusOK, resp.StatusCode)

	resp, payload = doJSON(t, app, "GET", "/admin/issues?status=OPEN&q=sink", adminToken, nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)
	matches = payload["data"].([]any)
	req.Len(matches, 1)
	reopened := matches[0].(map[string]any)
	req.Nil(reopened["assignedTo"])
	req.Equal("replaced the trap", reopened["resolutionNotes"])
}

func Test_Messages_Over_HTTP(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)

	residentToken := login(t, app, "alice@res.com", "password")
	adminToken := login(t, app, "admin@fixmate.com", "admin")

	resp, payload := doJSON(t, app, "POST", "/messages", residentToken, map[string]string{
		"receiverId": "tech-1", "text": "when will someone come by?",
	})
	req.Equal(stdhttp.StatusCreated, resp.StatusCode)
	sent := payload["data"].(map[string]any)
	// Non-admin senders always address the admin channel.
	req.Equal("ADMIN", sent["receiverId"])

	resp, payload = doJSON(t, app, "GET", "/messages", adminToken, nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)
	req.Len(payload["data"].([]any), 1)
}

// dropMessagesStore mimics a hosted backend whose message insert failed and
// was swallowed per the write-error policy.
type dropMessagesStore struct{ store.Store }

func (dropMessagesStore) SendMessage(context.Context, domain.Message) (*domain.Message, error) {
	return nil, nil
}

func Test_Send_Message_Dropped_Write_Is_Not_Created(t *testing.T) {
	req := require.New(t)

	st, err := local.Open("", bcrypt.MinCost, zap.NewNop())
	req.NoError(err)
	t.Cleanup(func() { _ = st.Close() })
	app := newTestAppWith(t, dropMessagesStore{st})

	token := login(t, app, "alice@res.com", "password")
	resp, payload := doJSON(t, app, "POST", "/messages", token, map[string]string{
		"text": "anyone there?",
	})
	req.Equal(stdhttp.StatusServiceUnavailable, resp.StatusCode)
	errPayload := payload["error"].(map[string]any)
	req.Equal("MESSAGE_NOT_STORED", errPayload["code"])
}

func Test_Admin_Dashboard_Endpoints(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)

	adminToken := login(t, app, "admin@fixmate.com", "admin")

	resp, payload := doJSON(t, app, "GET", "/admin/dashboard/stats", adminToken, nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)
	stats := payload["data"].(map[string]any)
	// Seed data: five issues, two OPEN (one HIGH), two active, one resolved.
	req.Equal(float64(5), stats["total"])
	req.Equal(float64(2), stats["open"])
	req.Equal(float64(1), stats["highPriorityOpen"])

	resp, payload = doJSON(t, app, "POST", "/admin/dashboard/summary", adminToken, nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)
	data := payload["data"].(map[string]any)
	req.Equal("API key not configured. Unable to generate AI insights.", data["summary"])

	resp, payload = doJSON(t, app, "GET", "/admin/technicians", adminToken, nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)
	req.Len(payload["data"].([]any), 2)
}

func Test_Session_Endpoint_Tracks_Login_State(t *testing.T) {
	req := require.New(t)
	app := newTestApp(t)

	resp, payload := doJSON(t, app, "GET", "/auth/session", "", nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)
	req.Nil(payload["data"])

	_ = login(t, app, "alice@res.com", "password")
	resp, payload = doJSON(t, app, "GET", "/auth/session", "", nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)
	user := payload["data"].(map[string]any)
	req.Equal("res-1", user["id"])
	req.Empty(user["secret"])

	resp, _ = doJSON(t, app, "POST", "/auth/logout", "", nil)
	req.Equal(stdhttp.StatusOK, resp.StatusCode)

	_, payload = doJSON(t, app, "GET", "/auth/session", "", nil)
	req.Nil(payload["data"])
}
