/*
Package handler provides the HTTP handlers and routing setup for the Flipside server.

This file holds the signup, signin and token refresh endpoints. Every address
comes from the URL; bodies carry only the code, the email or the refresh token.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"flipside/internal/app/auth"
	"flipside/internal/pkg/logx"
	"flipside/internal/pkg/req"
	"flipside/internal/pkg/resp"
)

const addressParam = "address"

// HandleCheckEmail answers a HEAD probe: 409 when the email is taken, 200 otherwise.
func HandleCheckEmail(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cerr := deps.Auth.CheckEmail(r.Context(), chi.URLParam(r, addressParam)); cerr != nil {
			resp.RespondStatus(w, cerr.Status)
			return
		}
		resp.RespondStatus(w, http.StatusOK)
	}
}

// HandleRequestSignupCode sends a code to a phone number that is not registered.
func HandleRequestSignupCode(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cerr := deps.Auth.RequestSignupCode(r.Context(), chi.URLParam(r, addressParam)); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondStatus(w, http.StatusOK)
	}
}

// HandleSignup redeems a signup code and responds 201 with a token pair.
func HandleSignup(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input auth.SignupInput
		if cerr := req.BindJSON(w, r, &input); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		pair, cerr := deps.Auth.Signup(r.Context(), chi.URLParam(r, addressParam), input)
		if cerr != nil {
			logx.Warn("Signup rejected", "code", cerr.Code)
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondSuccess(w, r, http.StatusCreated, pair)
	}
}

// HandleRequestSigninCode sends a code to the phone number of an existing user.
func HandleRequestSigninCode(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cerr := deps.Auth.RequestSigninCode(r.Context(), chi.URLParam(r, addressParam)); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondStatus(w, http.StatusOK)
	}
}

// HandleSignin redeems a signin code and responds with a token pair.
func HandleSignin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input auth.SigninInput
		if cerr := req.BindJSON(w, r, &input); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		pair, cerr := deps.Auth.Signin(r.Context(), chi.URLParam(r, addressParam), input)
		if cerr != nil {
			logx.Warn("Signin rejected", "code", cerr.Code)
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondSuccess(w, r, http.StatusOK, pair)
	}
}

// HandleRefreshToken exchanges a refresh token for a new pair.
func HandleRefreshToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input auth.RefreshInput
		if cerr := req.BindJSON(w, r, &input); cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}

		pair, cerr := deps.Auth.Refresh(r.Context(), input)
		if cerr != nil {
			resp.RespondError(w, r, cerr)
			return
		}
		resp.RespondSuccess(w, r, http.StatusOK, pair)
	}
}
