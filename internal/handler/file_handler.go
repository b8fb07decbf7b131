package handler

import (
	"net/http"

	"flipside/internal/app/customer"
	"flipside/internal/pkg/req"
	"flipside/internal/pkg/resp"
)

// HandlePresignPhoto creates an HTTP HandlerFunc to generate a time-limited,
// pre-signed URL for a profile photo upload.
func HandlePresignPhoto(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input customer.PresignInput
		if cerr := req.BindJSON(w, r, &input); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		me, ok := currentCustomer(deps, w, r)
		if !ok {
			return
		}

		photo, cerr := deps.Customers.PresignPhoto(r.Context(), me, input)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondSuccess(w, r, http.StatusOK, photo)
	}
}

// HandleListPhotos lists the caller's photos with pre-signed download URLs.
func HandleListPhotos(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, ok := currentCustomer(deps, w, r)
		if !ok {
			return
		}

		photos, cerr := deps.Customers.Photos(r.Context(), me)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondSuccess(w, r, http.StatusOK, photos)
	}
}

func HandleDeletePhoto(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		photoID, cerr := idParam(r, "photo_id")
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		me, ok := currentCustomer(deps, w, r)
		if !ok {
			return
		}

		if cerr := deps.Customers.DeletePhoto(r.Context(), me, photoID); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondStatus(w, http.StatusNoContent)
	}
}
