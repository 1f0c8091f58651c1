package httpapi

import (
	"net/http"

	"github.com/dugouthq/lineup-api/internal/platform/logging"
)

func NewRouter(
	handler *Handler,
	verifier TokenVerifier,
	logger *logging.Logger,
	corsAllowedOrigins []string,
	paymentWebhookToken string,
) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	mux := http.NewServeMux()
	registerSystemRoutes(mux, handler)
	registerWebhookRoutes(mux, handler, paymentWebhookToken)
	registerAuthorizedRoutes(mux, handler, verifier)

	return RequestTracing(RequestLogging(logger, CORS(corsAllowedOrigins, recoverPanic(logger, mux))))
}

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /v1/access/checkout-quote", handler.GetCheckoutQuote)
}

func registerWebhookRoutes(mux *http.ServeMux, handler *Handler, paymentWebhookToken string) {
	mux.Handle("POST /v1/payments/events", RequireWebhookToken(paymentWebhookToken, http.HandlerFunc(handler.RecordPaymentEvent)))
}

func registerAuthorizedRoutes(mux *http.ServeMux, handler *Handler, verifier TokenVerifier) {
	mux.Handle("POST /v1/teams/{teamID}/promo-redemptions", RequireAuth(verifier, http.HandlerFunc(handler.RedeemPromo)))
	mux.Handle("GET /v1/teams/{teamID}/access", RequireAuth(verifier, http.HandlerFunc(handler.GetTeamAccess)))
	mux.Handle("PUT /v1/games/{gameID}/lineup", RequireAuth(verifier, http.HandlerFunc(handler.SaveLineup)))
	mux.Handle("POST /v1/games/{gameID}/lineup/auto", RequireAuth(verifier, http.HandlerFunc(handler.AutoAssignLineup)))
	mux.Handle("GET /v1/games/{gameID}/lineup/export", RequireAuth(verifier, http.HandlerFunc(handler.ExportLineup)))
	mux.Handle("GET /v1/players/{playerID}/stats", RequireAuth(verifier, http.HandlerFunc(handler.GetPlayerStats)))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := startSpan(r.Context(), "httpapi.recoverPanic")
		defer span.End()

		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(ctx, "panic recovered", "panic", rec)
				writeInternalError(ctx, w)
			}
		}()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
