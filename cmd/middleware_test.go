package main

import (
	"bytes"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	verifyhttp "github.com/DTBbuilds/SmartDuka-sub007/internal/verification/http"
	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification/workflow"
	"github.com/DTBbuilds/SmartDuka-sub007/utils"
)

func newTestApp(t *testing.T) *application {
	t.Helper()
	tokens, err := utils.NewManager("middleware-test-key")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return &application{
		errorLog: log.New(io.Discard, "", 0),
		infoLog:  log.New(io.Discard, "", 0),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		tokens:   tokens,
	}
}

func TestJWTMiddleware(t *testing.T) {
	app := newTestApp(t)
	var got verifyhttp.Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = verifyhttp.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	admin := app.JWTMiddleware(next, utils.RoleAdmin)
	shop := app.JWTMiddleware(next, utils.RoleShopAdmin)

	adminToken, _ := app.tokens.NewJWT(utils.Claims{UserID: "adm-1", Role: utils.RoleAdmin, Email: "ops@smartduka.co.ke"}, time.Hour)
	shopToken, _ := app.tokens.NewJWT(utils.Claims{UserID: "user-1", Role: utils.RoleShopAdmin, ShopID: "shop-1"}, time.Hour)

	cases := []struct {
		name    string
		handler http.Handler
		header  string
		status  int
	}{
		{"missing header", admin, "", http.StatusUnauthorized},
		{"garbage token", admin, "Bearer nope", http.StatusUnauthorized},
		{"shop on admin route", admin, "Bearer " + shopToken, http.StatusForbidden},
		{"shop on shop route", shop, "Bearer " + shopToken, http.StatusNoContent},
		{"admin on shop route", shop, "Bearer " + adminToken, http.StatusNoContent},
		{"admin on admin route", admin, "Bearer " + adminToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			tc.handler.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
		})
	}

	if got.Actor.ID != "adm-1" || got.Actor.Type != workflow.ActorAdmin || got.Actor.Email != "ops@smartduka.co.ke" {
		t.Fatalf("unexpected principal %+v", got)
	}
}

func TestRecoverPanic(t *testing.T) {
	app := newTestApp(t)
	h := app.recoverPanic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestLogRequestRecordsStatus(t *testing.T) {
	app := newTestApp(t)
	var buf bytes.Buffer
	app.logger = slog.New(slog.NewTextHandler(&buf, nil))

	h := app.logRequest(secureHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/admin/invoices/inv-1/verify", nil))

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Fatalf("Cache-Control = %q", got)
	}
	line := buf.String()
	if !strings.Contains(line, "status=409") || !strings.Contains(line, "uri=/admin/invoices/inv-1/verify") {
		t.Fatalf("unexpected log line %q", line)
	}
}
