package handler

import (
	"net/http"
	"time"

	"flipside/internal/pkg/resp"
)

type MarkViewedResult struct {
	Viewed int64 `json:"viewed"`
}

// HandleListChats lists the caller's chats.
func HandleListChats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, cerr := pageParams(r)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		me, ok := currentCustomer(deps, w, r)
		if !ok {
			return
		}

		page, cerr := deps.History.ListChats(r.Context(), me.ID, params)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondSuccess(w, r, http.StatusOK, page)
	}
}

// HandleChatMessages lists the messages between the caller and another customer, newest first.
func HandleChatMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		otherID, cerr := idParam(r, "with_customer_id")
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		params, cerr := pageParams(r)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		me, ok := currentCustomer(deps, w, r)
		if !ok {
			return
		}

		page, cerr := deps.History.Messages(r.Context(), me.ID, otherID, params)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondSuccess(w, r, http.StatusOK, page)
	}
}

// HandleMarkViewed marks the messages sent to the caller so far as viewed.
func HandleMarkViewed(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		otherID, cerr := idParam(r, "with_customer_id")
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		me, ok := currentCustomer(deps, w, r)
		if !ok {
			return
		}

		n, cerr := deps.History.MarkViewed(r.Context(), me.ID, otherID, time.Now())
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondSuccess(w, r, http.StatusOK, MarkViewedResult{Viewed: n})
	}
}
