package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"flipside/internal/app/db"
	"flipside/internal/pkg/auth/jwt"
	"flipside/internal/pkg/limiter"
	"flipside/internal/pkg/logx"
	"flipside/internal/pkg/metrics"
	"flipside/internal/pkg/resp"
)

const (
	CodeRate  = 0.05
	CodeBurst = 3
	WSRate    = 0.5
	WSBurst   = 10
)

// Limiters are the per-IP buckets of the throttled endpoints.
type Limiters struct {
	Codes     *limiter.IPRateLimiter
	WebSocket *limiter.IPRateLimiter
}

// NewLimiters creates the production limiters. Call Stop when the server is done.
func NewLimiters() *Limiters {
	return &Limiters{
		Codes:     limiter.NewIPRateLimiter(rate.Limit(CodeRate), CodeBurst),
		WebSocket: limiter.NewIPRateLimiter(rate.Limit(WSRate), WSBurst),
	}
}

func (l *Limiters) Stop() {
	l.Codes.Stop()
	l.WebSocket.Stop()
}

// Router sets up the main HTTP routing table for the application. It
// configures CORS and request logging, extracts the user identity for the API
// routes and throttles code requests and WebSocket handshakes per IP.
func Router(deps *AppDeps, limits *Limiters) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "Flipside",
		})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/ws/chat", HandleWebSocket(deps, wsUpgrader, limits.WebSocket))

	r.Group(func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Kinds.Access))

		api.Route("/auth", func(a chi.Router) {
			a.Head("/signup/{address}/", HandleCheckEmail(deps))
			a.With(limits.Codes.Middleware).Get("/signup/{address}/", HandleRequestSignupCode(deps))
			a.Post("/signup/{address}/", HandleSignup(deps))

			a.With(limits.Codes.Middleware).Get("/signin/{address}/", HandleRequestSigninCode(deps))
			a.Post("/signin/{address}/", HandleSignin(deps))

			a.Post("/refresh_token/", HandleRefreshToken(deps))
		})

		api.Group(func(private chi.Router) {
			private.Use(jwt.RequireToken[db.User])

			private.Route("/chat", func(ch chi.Router) {
				ch.Get("/", HandleListChats(deps))
				ch.Get("/{with_customer_id}/", HandleChatMessages(deps))
				ch.Put("/{with_customer_id}/view/", HandleMarkViewed(deps))
			})

			private.Route("/customers", func(cu chi.Router) {
				cu.Post("/", HandleCreateCustomer(deps))
				cu.Get("/me/", HandleGetMe(deps))
				cu.Put("/{customer_id}/relation/", HandleSetRelation(deps))

				cu.Post("/photos/presign", HandlePresignPhoto(deps))
				cu.Get("/me/photos/", HandleListPhotos(deps))
				cu.Delete("/me/photos/{photo_id}/", HandleDeletePhoto(deps))
			})
		})
	})

	return r
}
