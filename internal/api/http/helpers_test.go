package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-lease-service/internal/app"
	"github.com/spec-kit/ticket-lease-service/internal/config"
	"github.com/spec-kit/ticket-lease-service/internal/domain"
	"github.com/spec-kit/ticket-lease-service/internal/service"
)

const testPassword = "Str0ng!pass"

type harness struct {
	svc    *app.App
	server *fiber.App
}

type response struct {
	status int
	body   map[string]any
}

func newHarness() *harness {
	dir, err := os.MkdirTemp("", "tickets-http-*")
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(os.RemoveAll, dir)

	cfg := &config.Config{
		App:    config.AppConfig{Name: "ticket-lease-service", Version: "test", NodeID: 7},
		Store:  config.StoreConfig{Backend: config.BackendSQLite, SQLitePath: filepath.Join(dir, "tickets.db"), RunMigrations: true},
		Logger: config.LoggerConfig{Level: "error"},
		Auth: config.AuthConfig{
			JWTSecret:              "http-suite-secret",
			AccessTokenTTLMinutes:  5,
			RefreshTokenTTLMinutes: 60,
			BcryptCost:             bcrypt.MinCost,
		},
		Lease:  config.LeaseConfig{Quota: domain.DefaultLeaseQuota, MaxAttempts: 3, InitialBackoffMS: 1, MaxBackoffMS: 5},
		Events: config.EventsConfig{Stream: "ticket-events", StreamMax: 100},
	}

	svc, err := app.New(context.Background(), cfg, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(svc.Close)

	return &harness{svc: svc, server: svc.HTTP()}
}

func (h *harness) user(username string, role domain.Role) *domain.User {
	u, err := h.svc.Accounts.Create(context.Background(), service.UserCreateInput{
		Username: username,
		Password: testPassword,
		Role:     role,
	})
	Expect(err).NotTo(HaveOccurred())
	return u
}

func (h *harness) tickets(n int) []*domain.Ticket {
	out := make([]*domain.Ticket, 0, n)
	for i := 0; i < n; i++ {
		t, err := h.svc.Tickets.Create(context.Background(), 0, service.TicketCreateInput{
			Subject:     fmt.Sprintf("Ticket %02d", i+1),
			Description: "pool ticket",
		})
		Expect(err).NotTo(HaveOccurred())
		out = append(out, t)
	}
	return out
}

func (h *harness) login(username string) string {
	res := h.do(http.MethodPost, "/api/token", "", map[string]string{"username": username, "password": testPassword})
	Expect(res.status).To(Equal(http.StatusOK))
	access, ok := res.body["access"].(string)
	Expect(ok).To(BeTrue())
	return access
}

func (h *harness) do(method, path, token string, payload any) response {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := h.server.Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	out := response{status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	if len(raw) > 0 {
		Expect(json.Unmarshal(raw, &out.body)).To(Succeed())
	}
	return out
}

func (r response) errorCode() string {
	e, _ := r.body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func (r response) errorDetails() map[string]any {
	e, _ := r.body["error"].(map[string]any)
	details, _ := e["details"].(map[string]any)
	return details
}

func (r response) list() []map[string]any {
	items, _ := r.body["data"].([]any)
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, item.(map[string]any))
	}
	return out
}

func (r response) item() map[string]any {
	item, _ := r.body["data"].(map[string]any)
	return item
}

func ids(items []map[string]any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item["id"].(string))
	}
	return out
}

func idOf(t *domain.Ticket) string {
	return fmt.Sprintf("%d", t.ID)
}
