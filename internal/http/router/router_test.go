package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/freelance-escrow/internal/app"
	"github.com/ignatzorin/freelance-escrow/internal/config"
	"github.com/ignatzorin/freelance-escrow/internal/domain/entity"
	"github.com/ignatzorin/freelance-escrow/internal/domain/valueobject"
	"github.com/ignatzorin/freelance-escrow/internal/http/router"
	"github.com/ignatzorin/freelance-escrow/internal/infrastructure/memory"
	"github.com/ignatzorin/freelance-escrow/internal/logger"
	"github.com/ignatzorin/freelance-escrow/internal/storage"
	"github.com/ignatzorin/freelance-escrow/internal/ws"
)

const password = "Str0ngPass1"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// clock - управляемые часы для ядра.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testAPI struct {
	t      *testing.T
	cfg    *config.Config
	app    *app.App
	engine *gin.Engine
	clock  *clock
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.Discard()

	cfg := &config.Config{
		Env:             "test",
		JWTSecret:       "router-test-access-secret-0123456789",
		RefreshSecret:   "router-test-refresh-secret-0123456789",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		AllowedOrigins:  []string{"http://localhost:3000"},
		RateLimitLimit:  1000,
		RateLimitPeriod: time.Minute,
		MaxUploadSizeMB: 1,
		Platform: config.PlatformConfig{
			OwnerID:         uuid.New(),
			TreasuryID:      uuid.New(),
			FeeBps:          1000,
			PanelSize:       1,
			EvidencePeriod:  time.Hour,
			VotingPeriod:    time.Hour,
			PanelRandomness: "seeded",
			KeeperInterval:  time.Minute,
		},
	}

	a, err := app.New(context.Background(), app.MemoryBackend(memory.NewStore()), cfg, nil)
	require.NoError(t, err)
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	a.SetNowFunc(clk.Now)

	evidence, err := storage.NewEvidenceStorage(t.TempDir(), cfg.MaxUploadSizeMB)
	require.NoError(t, err)

	h := router.NewHandlers(a, evidence, ws.NewHub(), nil, config.StorageDriverMemory)
	return &testAPI{
		t:      t,
		cfg:    cfg,
		app:    a,
		engine: router.SetupRouter(cfg, h, a.Tokens, a.Metrics),
		clock:  clk,
	}
}

func (x *testAPI) send(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	x.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	x.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(x.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (x *testAPI) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	x.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(x.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return x.send(req, token)
}

// expect проверяет статус и разбирает data в out.
func (x *testAPI) expect(status int, w *httptest.ResponseRecorder, env envelope, out any) {
	x.t.Helper()
	require.Equal(x.t, status, w.Code, w.Body.String())
	require.True(x.t, env.Success, w.Body.String())
	if out != nil {
		require.NoError(x.t, json.Unmarshal(env.Data, out))
	}
}

// expectError проверяет статус и код ошибки в конверте.
func (x *testAPI) expectError(status int, code string, w *httptest.ResponseRecorder, env envelope) {
	x.t.Helper()
	require.Equal(x.t, status, w.Code, w.Body.String())
	require.False(x.t, env.Success)
	require.NotNil(x.t, env.Error, w.Body.String())
	assert.Equal(x.t, code, env.Error.Code)
	assert.NotEmpty(x.t, env.Error.Message)
}

type account struct {
	ID    uuid.UUID
	Token string
}

func (x *testAPI) register(email, role string) account {
	x.t.Helper()
	var out struct {
		User struct {
			ID uuid.UUID `json:"id"`
		} `json:"user"`
		Tokens struct {
			AccessToken string `json:"access_token"`
		} `json:"tokens"`
	}
	w, env := x.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    email,
		"password": password,
		"username": strings.Split(email, "@")[0],
		"role":     role,
	})
	x.expect(http.StatusCreated, w, env, &out)
	return account{ID: out.User.ID, Token: out.Tokens.AccessToken}
}

// owner выпускает токен владельцу платформы, у которого нет учётной записи.
func (x *testAPI) owner() account {
	x.t.Helper()
	id := x.cfg.Platform.OwnerID
	pair, err := x.app.Tokens.GeneratePair(&entity.User{ID: id, Role: valueobject.RoleAdmin})
	require.NoError(x.t, err)
	return account{ID: id, Token: pair.AccessToken}
}

type projectView struct {
	ID         uuid.UUID `json:"id"`
	Status     string    `json:"status"`
	Milestones []struct {
		Completed  bool `json:"completed"`
		Approved   bool `json:"approved"`
		Arbitrated bool `json:"arbitrated"`
	} `json:"milestones"`
}

type escrowView struct {
	Funded   bool   `json:"funded"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	Released string `json:"released"`
	Refunded string `json:"refunded"`
	Fees     string `json:"fees"`
	Entries  []struct {
		Kind   string `json:"kind"`
		Amount string `json:"amount"`
	} `json:"entries"`
}

type balanceView struct {
	Currency  string `json:"currency"`
	Available string `json:"available"`
}

// startFundedProject проводит клиента от депозита до пополненного эскроу.
func (x *testAPI) startFundedProject(client, freelancer account, amounts ...string) projectView {
	x.t.Helper()
	w, env := x.do(http.MethodPost, "/api/wallet/deposit", client.Token, map[string]string{"amount": "100"})
	x.expect(http.StatusOK, w, env, nil)

	var job struct {
		ID uuid.UUID `json:"id"`
	}
	w, env = x.do(http.MethodPost, "/api/jobs", client.Token, map[string]string{"title": "Лендинг для кофейни"})
	x.expect(http.StatusCreated, w, env, &job)

	milestones := make([]map[string]string, 0, len(amounts))
	for i, a := range amounts {
		milestones = append(milestones, map[string]string{"description": fmt.Sprintf("этап %d", i+1), "amount": a})
	}
	var p projectView
	w, env = x.do(http.MethodPost, "/api/projects", client.Token, map[string]any{
		"job_id":        job.ID,
		"freelancer_id": freelancer.ID,
		"budget":        "100",
		"deadline":      x.clock.Now().Add(48 * time.Hour).Format(time.RFC3339),
		"milestones":    milestones,
	})
	x.expect(http.StatusCreated, w, env, &p)
	assert.Equal(x.t, "active", p.Status)

	var e escrowView
	w, env = x.do(http.MethodPost, "/api/projects/"+p.ID.String()+"/fund", client.Token, map[string]string{"amount": "100"})
	x.expect(http.StatusOK, w, env, &e)
	assert.True(x.t, e.Funded)
	assert.Equal(x.t, "100", e.Balance)
	return p
}

func (x *testAPI) available(acc account) string {
	x.t.Helper()
	var balances []balanceView
	w, env := x.do(http.MethodGet, "/api/wallet/balances", acc.Token, nil)
	x.expect(http.StatusOK, w, env, &balances)
	for _, b := range balances {
		if b.Currency == string(valueobject.CurrencyNative) {
			return b.Available
		}
	}
	return "0"
}

func TestMilestoneFlow(t *testing.T) {
	x := newTestAPI(t)
	client := x.register("client@example.com", "client")
	freelancer := x.register("dev@example.com", "freelancer")
	stranger := x.register("other@example.com", "client")

	w, env := x.do(http.MethodPost, "/api/jobs", freelancer.Token, map[string]string{"title": "Чужое задание"})
	x.expectError(http.StatusForbidden, "Forbidden", w, env)

	p := x.startFundedProject(client, freelancer, "60", "40")
	base := "/api/projects/" + p.ID.String()

	w, env = x.do(http.MethodPost, base+"/milestones/0/approve", client.Token, nil)
	x.expectError(http.StatusConflict, "MilestoneNotCompleted", w, env)

	w, env = x.do(http.MethodPost, base+"/milestones/0/complete", client.Token, nil)
	x.expectError(http.StatusForbidden, "NotFreelancer", w, env)

	w, env = x.do(http.MethodPost, base+"/milestones/0/complete", freelancer.Token, nil)
	x.expect(http.StatusOK, w, env, nil)
	w, env = x.do(http.MethodPost, base+"/milestones/0/approve", client.Token, nil)
	x.expect(http.StatusOK, w, env, &p)
	assert.True(t, p.Milestones[0].Approved)

	w, env = x.do(http.MethodPost, base+"/milestones/0/approve", client.Token, nil)
	x.expectError(http.StatusConflict, "AlreadyApproved", w, env)

	w, env = x.do(http.MethodPost, base+"/milestones/7/complete", freelancer.Token, nil)
	x.expectError(http.StatusBadRequest, "InvalidMilestoneIndex", w, env)

	var e escrowView
	w, env = x.do(http.MethodGet, base+"/escrow", freelancer.Token, nil)
	x.expect(http.StatusOK, w, env, &e)
	assert.Equal(t, "40", e.Balance)
	assert.Equal(t, "60", e.Released)
	assert.Equal(t, "6", e.Fees)
	assert.Len(t, e.Entries, 3, "fund, fee and release")
	assert.Equal(t, "54", x.available(freelancer))
	assert.Equal(t, "0", x.available(client))

	w, env = x.do(http.MethodGet, base, stranger.Token, nil)
	x.expectError(http.StatusForbidden, "NotParticipant", w, env)
	w, env = x.do(http.MethodGet, base+"/escrow", stranger.Token, nil)
	x.expectError(http.StatusForbidden, "NotParticipant", w, env)

	var mine []projectView
	w, env = x.do(http.MethodGet, "/api/projects/my", freelancer.Token, nil)
	x.expect(http.StatusOK, w, env, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, p.ID, mine[0].ID)

	w, env = x.do(http.MethodPost, base+"/milestones/1/complete", freelancer.Token, nil)
	x.expect(http.StatusOK, w, env, nil)
	w, env = x.do(http.MethodPost, base+"/milestones/1/approve", client.Token, nil)
	x.expect(http.StatusOK, w, env, &p)
	assert.Equal(t, "completed", p.Status)
	assert.Equal(t, "90", x.available(freelancer))

	w, env = x.do(http.MethodPost, "/api/feedback", client.Token, map[string]any{
		"project_id": p.ID,
		"score":      5,
	})
	x.expect(http.StatusCreated, w, env, nil)

	var rep struct {
		Reputation uint64 `json:"reputation"`
	}
	w, env = x.do(http.MethodGet, "/api/users/"+freelancer.ID.String()+"/reputation", "", nil)
	x.expect(http.StatusOK, w, env, &rep)
	assert.Equal(t, uint64(5), rep.Reputation)
}

func TestDisputeFlow(t *testing.T) {
	x := newTestAPI(t)
	client := x.register("client@example.com", "client")
	freelancer := x.register("dev@example.com", "freelancer")
	arbitrator := x.register("judge@example.com", "arbitrator")
	operator := x.owner()

	w, env := x.do(http.MethodPost, "/api/arbitrators/register", client.Token, nil)
	x.expectError(http.StatusForbidden, "Forbidden", w, env)

	w, env = x.do(http.MethodPost, "/api/arbitrators/register", arbitrator.Token, map[string]string{"profile_ref": "ipfs://judge"})
	x.expect(http.StatusCreated, w, env, nil)

	var active []uuid.UUID
	w, env = x.do(http.MethodGet, "/api/arbitrators/active", "", nil)
	x.expect(http.StatusOK, w, env, &active)
	assert.Equal(t, []uuid.UUID{arbitrator.ID}, active)

	p := x.startFundedProject(client, freelancer, "100")
	base := "/api/projects/" + p.ID.String()

	w, env = x.do(http.MethodPost, base+"/milestones/0/dispute", client.Token, map[string]string{"reason_ref": "ipfs://claim"})
	x.expectError(http.StatusConflict, "MilestoneNotDisputable", w, env)

	w, env = x.do(http.MethodPost, base+"/milestones/0/complete", freelancer.Token, nil)
	x.expect(http.StatusOK, w, env, nil)

	var d struct {
		ID        uuid.UUID   `json:"id"`
		Panel     []uuid.UUID `json:"panel"`
		Status    string      `json:"status"`
		Evidence  []struct{}  `json:"evidence"`
		ClientWon *bool       `json:"client_won"`
	}
	w, env = x.do(http.MethodPost, base+"/milestones/0/dispute", client.Token, map[string]string{"reason_ref": "ipfs://claim"})
	x.expect(http.StatusCreated, w, env, &d)
	assert.Equal(t, []uuid.UUID{arbitrator.ID}, d.Panel)
	assert.Equal(t, "evidence", d.Status)
	assert.Nil(t, d.ClientWon)
	disputePath := "/api/disputes/" + d.ID.String()

	w, env = x.do(http.MethodPost, base+"/milestones/0/approve", client.Token, nil)
	x.expectError(http.StatusConflict, "ProjectNotActive", w, env)

	w, env = x.do(http.MethodPost, disputePath+"/evidence", freelancer.Token, map[string]string{"evidence_ref": "ipfs://commits"})
	x.expect(http.StatusOK, w, env, nil)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "chat.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("переписка с исполнителем"))
	require.NoError(t, err)
	require.NoError(t, form.Close())
	req := httptest.NewRequest(http.MethodPost, disputePath+"/evidence/upload", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())

	var upload struct {
		Ref     string `json:"ref"`
		Dispute struct {
			Evidence []struct {
				Ref string `json:"ref"`
			} `json:"evidence"`
		} `json:"dispute"`
	}
	w, env = x.send(req, client.Token)
	x.expect(http.StatusCreated, w, env, &upload)
	assert.True(t, strings.HasPrefix(upload.Ref, "sha256:"))
	refs := make([]string, 0, len(upload.Dispute.Evidence))
	for _, ev := range upload.Dispute.Evidence {
		refs = append(refs, ev.Ref)
	}
	assert.ElementsMatch(t, []string{"ipfs://commits", upload.Ref}, refs)

	var assigned []struct {
		ID uuid.UUID `json:"id"`
	}
	w, env = x.do(http.MethodGet, "/api/disputes/assigned", arbitrator.Token, nil)
	x.expect(http.StatusOK, w, env, &assigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, d.ID, assigned[0].ID)

	w, env = x.do(http.MethodPost, disputePath+"/voting", operator.Token, nil)
	x.expectError(http.StatusConflict, "EvidencePeriodOpen", w, env)

	x.clock.Advance(2 * time.Hour)

	w, env = x.do(http.MethodPost, disputePath+"/evidence", client.Token, map[string]string{"evidence_ref": "ipfs://late"})
	x.expectError(http.StatusConflict, "EvidencePeriodClosed", w, env)

	w, env = x.do(http.MethodPost, disputePath+"/voting", client.Token, nil)
	x.expectError(http.StatusForbidden, "Forbidden", w, env)

	w, env = x.do(http.MethodPost, disputePath+"/voting", operator.Token, nil)
	x.expect(http.StatusOK, w, env, &d)
	assert.Equal(t, "voting", d.Status)

	w, env = x.do(http.MethodPost, disputePath+"/votes", freelancer.Token, map[string]bool{"for_client": false})
	x.expectError(http.StatusForbidden, "NotPanelMember", w, env)

	w, env = x.do(http.MethodPost, disputePath+"/votes", arbitrator.Token, map[string]bool{"for_client": false})
	x.expect(http.StatusOK, w, env, &d)
	assert.Equal(t, "finalized", d.Status)
	require.NotNil(t, d.ClientWon)
	assert.False(t, *d.ClientWon)

	w, env = x.do(http.MethodPost, disputePath+"/votes", arbitrator.Token, map[string]bool{"for_client": true})
	x.expectError(http.StatusConflict, "VotingClosed", w, env)

	w, env = x.do(http.MethodGet, base, client.Token, nil)
	x.expect(http.StatusOK, w, env, &p)
	assert.Equal(t, "completed", p.Status)
	assert.True(t, p.Milestones[0].Arbitrated)
	assert.Equal(t, "90", x.available(freelancer))
}

func TestAdminParams(t *testing.T) {
	x := newTestAPI(t)
	user := x.register("client@example.com", "client")
	operator := x.owner()

	params := map[string]any{
		"fee_bps":                    500,
		"min_reputation_to_register": 20,
		"panel_size":                 3,
		"evidence_period_seconds":    3600,
		"voting_period_seconds":      7200,
	}
	w, env := x.do(http.MethodPut, "/api/admin/params", user.Token, params)
	x.expectError(http.StatusForbidden, "NotOwner", w, env)

	var got struct {
		FeeBps    uint32 `json:"fee_bps"`
		PanelSize int    `json:"panel_size"`
	}
	w, env = x.do(http.MethodPut, "/api/admin/params", operator.Token, params)
	x.expect(http.StatusOK, w, env, &got)
	assert.Equal(t, uint32(500), got.FeeBps)
	assert.Equal(t, 3, got.PanelSize)

	params["fee_bps"] = 10001
	w, env = x.do(http.MethodPut, "/api/admin/params", operator.Token, params)
	x.expectError(http.StatusBadRequest, "InvalidParams", w, env)

	w, env = x.do(http.MethodGet, "/api/admin/params", user.Token, nil)
	x.expect(http.StatusOK, w, env, &got)
	assert.Equal(t, uint32(500), got.FeeBps)
}

func TestErrorEnvelope(t *testing.T) {
	x := newTestAPI(t)
	user := x.register("client@example.com", "client")

	w, env := x.do(http.MethodGet, "/api/projects/my", "", nil)
	x.expectError(http.StatusUnauthorized, "Unauthorized", w, env)

	w, env = x.do(http.MethodGet, "/api/projects/my", "garbage", nil)
	x.expectError(http.StatusUnauthorized, "Unauthorized", w, env)

	w, env = x.do(http.MethodGet, "/api/projects/not-a-uuid", user.Token, nil)
	x.expectError(http.StatusBadRequest, "BAD_REQUEST", w, env)

	w, env = x.do(http.MethodGet, "/api/projects/"+uuid.NewString(), user.Token, nil)
	x.expectError(http.StatusNotFound, "ProjectNotFound", w, env)

	w, env = x.do(http.MethodPut, "/api/notifications/opt-outs/weather", user.Token, nil)
	x.expectError(http.StatusBadRequest, "VALIDATION_ERROR", w, env)

	w, _ = x.do(http.MethodPut, "/api/notifications/opt-outs/escrow", user.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = x.do(http.MethodDelete, "/api/notifications/opt-outs/escrow", user.Token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, env = x.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "admin@example.com",
		"password": password,
		"role":     "admin",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)

	w, env = x.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "client@example.com",
		"password": "WrongPass1",
	})
	x.expectError(http.StatusUnauthorized, "InvalidCredentials", w, env)
}

func TestHealthAndMetrics(t *testing.T) {
	x := newTestAPI(t)

	w, _ := x.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, config.StorageDriverMemory, health.Checks["storage_driver"])

	x.register("client@example.com", "client")

	w, _ = x.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "escrow_http_requests_total")
}

func TestCORSPreflight(t *testing.T) {
	x := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/projects/my", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w, _ := x.send(req, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/projects/my", nil)
	req.Header.Set("Origin", "http://evil.example")
	w, _ = x.send(req, "")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
