package http_test

import (
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/spec-kit/ticket-lease-service/internal/domain"
)

var _ = Describe("Ticket lease API", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness()
		h.user("admin", domain.RoleAdmin)
		h.user("alice", domain.RoleAgent)
		h.user("bob", domain.RoleAgent)
	})

	Describe("tokens", func() {
		It("issues an access and refresh pair", func() {
			res := h.do(http.MethodPost, "/api/token", "", map[string]string{"username": "alice", "password": testPassword})
			Expect(res.status).To(Equal(http.StatusOK))
			Expect(res.body).To(HaveKey("access"))
			Expect(res.body).To(HaveKey("refresh"))

			refreshed := h.do(http.MethodPost, "/api/token/refresh", "", map[string]string{"refresh": res.body["refresh"].(string)})
			Expect(refreshed.status).To(Equal(http.StatusOK))
			Expect(refreshed.body["access"]).NotTo(BeEmpty())
			Expect(refreshed.body).NotTo(HaveKey("refresh"))
		})

		It("rejects a wrong password", func() {
			res := h.do(http.MethodPost, "/api/token", "", map[string]string{"username": "alice", "password": "nope"})
			Expect(res.status).To(Equal(http.StatusUnauthorized))
			Expect(res.errorCode()).To(Equal("UNAUTHORIZED"))
		})

		It("does not accept an access token as a refresh token", func() {
			access := h.login("alice")
			res := h.do(http.MethodPost, "/api/token/refresh", "", map[string]string{"refresh": access})
			Expect(res.status).To(Equal(http.StatusUnauthorized))
		})

		It("requires a bearer token on ticket routes", func() {
			res := h.do(http.MethodGet, "/api/tickets/fetch-tickets", "", nil)
			Expect(res.status).To(Equal(http.StatusUnauthorized))

			res = h.do(http.MethodGet, "/api/tickets/fetch-tickets", "garbage", nil)
			Expect(res.status).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("GET /api/tickets/fetch-tickets", func() {
		It("grants the first fifteen tickets in creation order and is stable", func() {
			pool := h.tickets(20)
			token := h.login("alice")

			first := h.do(http.MethodGet, "/api/tickets/fetch-tickets", token, nil)
			Expect(first.status).To(Equal(http.StatusOK))
			items := first.list()
			Expect(items).To(HaveLen(domain.DefaultLeaseQuota))

			want := make([]string, 0, domain.DefaultLeaseQuota)
			for _, t := range pool[:domain.DefaultLeaseQuota] {
				want = append(want, idOf(t))
			}
			Expect(ids(items)).To(Equal(want))
			Expect(items[0]["is_sold"]).To(BeFalse())
			Expect(items[0]["assigned_to"]).NotTo(BeNil())

			second := h.do(http.MethodGet, "/api/tickets/fetch-tickets", token, nil)
			Expect(ids(second.list())).To(Equal(want))
		})

		It("gives a second agent only what is left", func() {
			pool := h.tickets(20)
			h.do(http.MethodGet, "/api/tickets/fetch-tickets", h.login("alice"), nil)

			res := h.do(http.MethodGet, "/api/tickets/fetch-tickets", h.login("bob"), nil)
			Expect(res.status).To(Equal(http.StatusOK))
			want := []string{}
			for _, t := range pool[domain.DefaultLeaseQuota:] {
				want = append(want, idOf(t))
			}
			Expect(ids(res.list())).To(Equal(want))
		})

		It("returns an empty list when the pool is empty", func() {
			res := h.do(http.MethodGet, "/api/tickets/fetch-tickets", h.login("alice"), nil)
			Expect(res.status).To(Equal(http.StatusOK))
			Expect(res.body["data"]).To(BeEmpty())
		})

		It("is not available to admins", func() {
			res := h.do(http.MethodGet, "/api/tickets/fetch-tickets", h.login("admin"), nil)
			Expect(res.status).To(Equal(http.StatusForbidden))
			Expect(res.errorCode()).To(Equal("FORBIDDEN"))
		})
	})

	Describe("POST /api/tickets/:id/sell", func() {
		var (
			pool  []*domain.Ticket
			alice string
			bob   string
		)

		BeforeEach(func() {
			pool = h.tickets(16)
			alice = h.login("alice")
			bob = h.login("bob")
			h.do(http.MethodGet, "/api/tickets/fetch-tickets", alice, nil)
		})

		It("sells a held ticket and then reports it as already sold", func() {
			path := fmt.Sprintf("/api/tickets/%s/sell", idOf(pool[0]))

			res := h.do(http.MethodPost, path, alice, nil)
			Expect(res.status).To(Equal(http.StatusOK))
			Expect(res.body["detail"]).To(Equal("Ticket marked as sold."))

			again := h.do(http.MethodPost, path, alice, nil)
			Expect(again.status).To(Equal(http.StatusBadRequest))
			Expect(again.errorCode()).To(Equal("ALREADY_SOLD"))
		})

		It("refuses to sell another agent's ticket", func() {
			res := h.do(http.MethodPost, fmt.Sprintf("/api/tickets/%s/sell", idOf(pool[0])), bob, nil)
			Expect(res.status).To(Equal(http.StatusForbidden))
			Expect(res.errorCode()).To(Equal("UNAUTHORIZED_OWNER"))
		})

		It("refuses to sell an unassigned ticket", func() {
			res := h.do(http.MethodPost, fmt.Sprintf("/api/tickets/%s/sell", idOf(pool[15])), alice, nil)
			Expect(res.status).To(Equal(http.StatusForbidden))
			Expect(res.errorCode()).To(Equal("UNAUTHORIZED_OWNER"))
		})

		It("reports unknown tickets as not found", func() {
			res := h.do(http.MethodPost, "/api/tickets/424242/sell", alice, nil)
			Expect(res.status).To(Equal(http.StatusNotFound))
			Expect(res.errorCode()).To(Equal("NOT_FOUND"))
		})

		It("tops the agent back up after a sale", func() {
			h.do(http.MethodPost, fmt.Sprintf("/api/tickets/%s/sell", idOf(pool[0])), alice, nil)

			res := h.do(http.MethodGet, "/api/tickets/fetch-tickets", alice, nil)
			got := ids(res.list())
			Expect(got).To(HaveLen(domain.DefaultLeaseQuota))
			Expect(got).NotTo(ContainElement(idOf(pool[0])))
			Expect(got).To(ContainElement(idOf(pool[15])))
		})
	})

	Describe("ticket administration", func() {
		var admin string

		BeforeEach(func() {
			admin = h.login("admin")
		})

		It("creates a ticket with its creator and creation order", func() {
			res := h.do(http.MethodPost, "/api/tickets", admin, map[string]string{"subject": "Row 4", "description": "Seat 12"})
			Expect(res.status).To(Equal(http.StatusCreated))
			item := res.item()
			Expect(item["subject"]).To(Equal("Row 4"))
			Expect(item["creation_order"]).To(BeNumerically("==", 1))
			Expect(item["assigned_to"]).To(BeNil())
			Expect(item["created_by"]).To(HaveKeyWithValue("username", "admin"))
		})

		It("validates ticket content", func() {
			res := h.do(http.MethodPost, "/api/tickets", admin, map[string]string{"subject": " ", "description": "x"})
			Expect(res.status).To(Equal(http.StatusBadRequest))
			Expect(res.errorCode()).To(Equal("VALIDATION_FAILED"))
			Expect(res.errorDetails()).To(HaveKey("subject"))
		})

		It("does not let agents create tickets", func() {
			res := h.do(http.MethodPost, "/api/tickets", h.login("alice"), map[string]string{"subject": "s", "description": "d"})
			Expect(res.status).To(Equal(http.StatusForbidden))
		})

		It("updates and deletes tickets", func() {
			t := h.tickets(1)[0]
			path := "/api/tickets/" + idOf(t)

			put := h.do(http.MethodPut, path, admin, map[string]string{"subject": "only subject"})
			Expect(put.status).To(Equal(http.StatusBadRequest))

			patch := h.do(http.MethodPatch, path, admin, map[string]string{"subject": "renamed"})
			Expect(patch.status).To(Equal(http.StatusOK))
			Expect(patch.item()["subject"]).To(Equal("renamed"))
			Expect(patch.item()["description"]).To(Equal("pool ticket"))

			del := h.do(http.MethodDelete, path, admin, nil)
			Expect(del.status).To(Equal(http.StatusNoContent))

			get := h.do(http.MethodGet, path, admin, nil)
			Expect(get.status).To(Equal(http.StatusNotFound))
		})

		It("lists every ticket for admins and only held tickets for agents", func() {
			h.tickets(20)
			alice := h.login("alice")
			h.do(http.MethodGet, "/api/tickets/fetch-tickets", alice, nil)

			all := h.do(http.MethodGet, "/api/tickets?limit=100", admin, nil)
			Expect(all.list()).To(HaveLen(20))

			unassigned := h.do(http.MethodGet, "/api/tickets?unassigned=true", admin, nil)
			Expect(unassigned.list()).To(HaveLen(5))

			mine := h.do(http.MethodGet, "/api/tickets", alice, nil)
			Expect(mine.list()).To(HaveLen(domain.DefaultLeaseQuota))

			theirs := h.do(http.MethodGet, "/api/tickets", h.login("bob"), nil)
			Expect(theirs.list()).To(BeEmpty())
		})

		It("hides other agents' tickets behind not found", func() {
			pool := h.tickets(1)
			h.do(http.MethodGet, "/api/tickets/fetch-tickets", h.login("alice"), nil)

			res := h.do(http.MethodGet, "/api/tickets/"+idOf(pool[0]), h.login("bob"), nil)
			Expect(res.status).To(Equal(http.StatusNotFound))
		})
	})

	Describe("user administration", func() {
		It("reports every password problem", func() {
			res := h.do(http.MethodPost, "/api/users", h.login("admin"), map[string]string{
				"username": "carol",
				"password": "short",
				"role":     "agent",
			})
			Expect(res.status).To(Equal(http.StatusBadRequest))
			Expect(res.errorDetails()).To(HaveKey("password"))
			Expect(res.errorDetails()["password"]).To(HaveLen(4))
		})

		It("creates agents who can then log in", func() {
			res := h.do(http.MethodPost, "/api/users", h.login("admin"), map[string]string{
				"username": "carol",
				"password": testPassword,
				"role":     "agent",
			})
			Expect(res.status).To(Equal(http.StatusCreated))
			Expect(res.item()).NotTo(HaveKey("password_hash"))
			Expect(h.login("carol")).NotTo(BeEmpty())
		})

		It("rejects duplicate usernames", func() {
			res := h.do(http.MethodPost, "/api/users", h.login("admin"), map[string]string{
				"username": "alice",
				"password": testPassword,
				"role":     "agent",
			})
			Expect(res.status).To(Equal(http.StatusBadRequest))
			Expect(res.errorDetails()).To(HaveKey("username"))
		})

		It("is closed to agents", func() {
			res := h.do(http.MethodGet, "/api/users", h.login("alice"), nil)
			Expect(res.status).To(Equal(http.StatusForbidden))
		})

		It("blocks deactivated accounts", func() {
			alice := h.login("alice")
			list := h.do(http.MethodGet, "/api/users?limit=10", h.login("admin"), nil)
			var aliceID string
			for _, u := range list.list() {
				if u["username"] == "alice" {
					aliceID = u["id"].(string)
				}
			}
			Expect(aliceID).NotTo(BeEmpty())

			res := h.do(http.MethodPatch, "/api/users/"+aliceID, h.login("admin"), map[string]any{"active": false})
			Expect(res.status).To(Equal(http.StatusOK))

			denied := h.do(http.MethodGet, "/api/tickets/fetch-tickets", alice, nil)
			Expect(denied.status).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("operational endpoints", func() {
		It("reports liveness and store readiness", func() {
			live := h.do(http.MethodGet, "/health/live", "", nil)
			Expect(live.status).To(Equal(http.StatusOK))
			Expect(live.body["status"]).To(Equal("alive"))

			ready := h.do(http.MethodGet, "/health/ready", "", nil)
			Expect(ready.status).To(Equal(http.StatusOK))
			Expect(ready.body["dependencies"]).To(HaveKeyWithValue("sqlite", "ok"))
		})

		It("counts leases in the metrics snapshot", func() {
			h.tickets(3)
			h.do(http.MethodGet, "/api/tickets/fetch-tickets", h.login("alice"), nil)

			res := h.do(http.MethodGet, "/metrics", "", nil)
			Expect(res.status).To(Equal(http.StatusOK))
			Expect(res.body).To(HaveKey("tickets_leased"))
		})
	})
})
