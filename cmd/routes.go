package main

import (
	"net/http"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/DTBbuilds/SmartDuka-sub007/internal/verification"
	verifyhttp "github.com/DTBbuilds/SmartDuka-sub007/internal/verification/http"
	"github.com/DTBbuilds/SmartDuka-sub007/utils"
)

func (app *application) JWTMiddlewareWithRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return app.JWTMiddleware(next, requiredRole)
	}
}

func (app *application) routes() (http.Handler, error) {
	baseMiddleware := alice.New(app.recoverPanic, app.logRequest, secureHeaders)
	standardMiddleware := baseMiddleware.Append(makeResponseJSON)
	shopAuthMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole(utils.RoleShopAdmin))
	adminAuthMiddleware := standardMiddleware.Append(app.JWTMiddlewareWithRole(utils.RoleAdmin))

	mux := pat.New()

	// Payment verification
	err := verification.RegisterVerificationRoutes(mux, verifyhttp.Chains{
		Public: standardMiddleware,
		Admin:  adminAuthMiddleware,
		Shop:   shopAuthMiddleware,
	}, app.verification)
	if err != nil {
		return nil, err
	}

	mux.Get("/metrics", baseMiddleware.Then(promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})))
	mux.Get("/healthz", baseMiddleware.ThenFunc(app.healthz))

	return mux, nil
}
