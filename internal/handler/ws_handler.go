/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

The handshake always upgrades. A credential that does not resolve to a customer
is answered on the socket itself, so clients see one uniform rejection.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"flipside/internal/app/chat"
	"flipside/internal/pkg/auth/jwt"
	"flipside/internal/pkg/errs"
	"flipside/internal/pkg/limiter"
	"flipside/internal/pkg/logx"
	"flipside/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rateLimiter.Allow(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", limiter.ClientIP(r))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		customerID := handshakeCustomer(deps, r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		state, err := deps.Manager.Serve(conn, customerID)
		if err != nil && !errors.Is(err, chat.ErrManagerClosed) {
			logx.Error(err, "Chat session failed", "customer_id", customerID)
			return
		}
		logx.Info("WebSocket connection finished", "customer_id", customerID, "state", state.String())
	}
}

// handshakeCustomer returns the customer id of the handshake credential, or 0.
func handshakeCustomer(deps *AppDeps, r *http.Request) int64 {
	raw, ok := jwt.HandshakeToken(r)
	if !ok {
		return 0
	}

	token, err := deps.Kinds.Access.Verify(r.Context(), raw)
	if err != nil {
		if !errors.Is(err, jwt.ErrInvalidToken) {
			logx.Error(err, "Principal lookup failed during WebSocket handshake")
		}
		return 0
	}

	c, cerr := deps.Customers.ForUser(r.Context(), token.Principal.ID)
	if cerr != nil {
		return 0
	}
	return c.ID
}
