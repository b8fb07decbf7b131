package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"flipside/internal/app/chat"
	"flipside/internal/app/db"
	"flipside/internal/pkg/auth/jwt"
	"flipside/internal/pkg/errs"
	"flipside/internal/pkg/resp"
)

// currentUser returns the user of the verified access token. Routes using it
// sit behind jwt.RequireToken.
func currentUser(r *http.Request) db.User {
	return jwt.TokenFromContext[db.User](r.Context()).Principal
}

// currentCustomer resolves the caller's customer or writes the error response.
func currentCustomer(deps *AppDeps, w http.ResponseWriter, r *http.Request) (db.Customer, bool) {
	c, cerr := deps.Customers.ForUser(r.Context(), currentUser(r).ID)
	if cerr != nil {
		resp.RespondError(w, r, cerr)
		return db.Customer{}, false
	}
	return c, true
}

// idParam parses a positive integer URL parameter.
func idParam(r *http.Request, name string) (int64, *errs.CustomError) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.NewError(errs.ErrInvalidParams)
	}
	return id, nil
}

// pageParams reads the optional limit and offset query parameters.
func pageParams(r *http.Request) (chat.PageParams, *errs.CustomError) {
	var p chat.PageParams
	query := r.URL.Query()

	if raw := query.Get("limit"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || v < 0 {
			return p, errs.NewError(errs.ErrInvalidParams)
		}
		p.Limit = int32(v)
	}

	if raw := query.Get("offset"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || v < 0 {
			return p, errs.NewError(errs.ErrInvalidParams)
		}
		p.Offset = int32(v)
	}

	return p.Normalize(), nil
}
