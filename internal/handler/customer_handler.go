package handler

import (
	"net/http"

	"flipside/internal/app/customer"
	"flipside/internal/pkg/req"
	"flipside/internal/pkg/resp"
)

type RelationInput struct {
	Relation string `json:"relation"`
}

// HandleCreateCustomer creates the caller's customer profile.
func HandleCreateCustomer(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input customer.CreateInput
		if cerr := req.BindJSON(w, r, &input); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		profile, cerr := deps.Customers.Create(r.Context(), currentUser(r).ID, input)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondSuccess(w, r, http.StatusCreated, profile)
	}
}

func HandleGetMe(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, cerr := deps.Customers.Me(r.Context(), currentUser(r).ID)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondSuccess(w, r, http.StatusOK, profile)
	}
}

// HandleSetRelation likes or blocks another customer.
func HandleSetRelation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		toID, cerr := idParam(r, "customer_id")
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		var input RelationInput
		if cerr := req.BindJSON(w, r, &input); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		me, ok := currentCustomer(deps, w, r)
		if !ok {
			return
		}

		if cerr := deps.Customers.SetRelation(r.Context(), me, toID, input.Relation); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondSuccess(w, r, http.StatusOK, input)
	}
}
