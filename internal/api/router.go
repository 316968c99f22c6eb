package api

import (
	"net/http"
	"time"

	"library_lending/internal/api/handler"
	"library_lending/internal/api/middleware"
	"library_lending/internal/app/service"
	"library_lending/internal/domain/model"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Access int

const (
	Public Access = iota
	Authenticated
	AdminOnly
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case AdminOnly:
		return "admin"
	default:
		return "unknown"
	}
}

type Route struct {
	Method  string
	Pattern string
	Access  Access
	Handler http.HandlerFunc
}

// Services bundles what the HTTP layer calls into.
type Services struct {
	Auth    *service.AuthService
	Guard   *service.AccessGuard
	Catalog *service.CatalogService
	Lending *service.LendingService
}

// Routes is the full HTTP surface of the service.
func Routes(svc Services, log *zap.Logger) []Route {
	auth := handler.NewAuthHandler(svc.Auth, log)
	books := handler.NewBookHandler(svc.Catalog, log)
	loans := handler.NewLoanHandler(svc.Lending, log)

	return []Route{
		{http.MethodGet, "/health", Public, health},

		{http.MethodPost, "/auth/signup", Public, auth.Signup},
		{http.MethodPost, "/auth/login", Public, auth.Login},
		{http.MethodPost, "/auth/bootstrap-admin", Public, auth.BootstrapAdmin},

		{http.MethodPost, "/books", AdminOnly, books.Create},
		{http.MethodGet, "/books", Public, books.List},
		{http.MethodGet, "/books/{bookID}", Public, books.Get},
		{http.MethodDelete, "/books/{bookID}", AdminOnly, books.Delete},

		{http.MethodPost, "/loans/borrow/{bookID}", Authenticated, loans.Borrow},
		{http.MethodPost, "/loans/return/{bookID}", Authenticated, loans.Return},
		{http.MethodGet, "/me/loans", Authenticated, loans.MyLoans},
	}
}

func NewRouter(svc Services, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	authenticate := middleware.Authenticator(svc.Guard, log)
	adminOnly := middleware.RequireRole(svc.Guard, model.RoleAdmin)

	for _, rt := range Routes(svc, log) {
		var h http.Handler = rt.Handler
		switch rt.Access {
		case AdminOnly:
			h = authenticate(adminOnly(h))
		case Authenticated:
			h = authenticate(h)
		}
		r.Method(rt.Method, rt.Pattern, h)
	}
	return r
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}
