// Copyright 2026 BotFleet
// SPDX-License-Identifier: BUSL-1.1

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"botfleet/platform/gateway/override"
)

// registerOverrideRoutes mounts the rate override administration surface.
// These routes mutate billing policy, so they require an admin JWT rather
// than a tenant service key.
func (g *Gateway) registerOverrideRoutes(r *mux.Router) {
	r.HandleFunc("/admin/overrides", g.requireAdmin(g.handleCreateOverride)).Methods("POST")
	r.HandleFunc("/admin/overrides", g.requireAdmin(g.handleListOverrides)).Methods("GET")
	r.HandleFunc("/admin/overrides/{id}", g.requireAdmin(g.handleGetOverride)).Methods("GET")
	r.HandleFunc("/admin/overrides/{id}", g.requireAdmin(g.handleUpdateOverride)).Methods("PUT")
	r.HandleFunc("/admin/overrides/{id}", g.requireAdmin(g.handleCancelOverride)).Methods("DELETE")
}

// requireAdmin validates a Bearer JWT signed with the admin secret and
// carrying role "admin".
func (g *Gateway) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing admin token")
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			return g.adminSecret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid admin token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || claims["role"] != "admin" {
			writeError(w, http.StatusForbidden, CodeUnauthorized, "admin role required")
			return
		}

		next(w, r)
	}
}

func (g *Gateway) handleCreateOverride(w http.ResponseWriter, r *http.Request) {
	var o override.RateOverride
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}

	if err := g.overrides.Create(r.Context(), &o); err != nil {
		g.writeOverrideError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (g *Gateway) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	list, err := g.overrides.List(r.Context(), r.URL.Query().Get("adapter_id"))
	if err != nil {
		g.writeOverrideError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"overrides": list})
}

func (g *Gateway) handleGetOverride(w http.ResponseWriter, r *http.Request) {
	o, err := g.overrides.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		g.writeOverrideError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (g *Gateway) handleUpdateOverride(w http.ResponseWriter, r *http.Request) {
	var o override.RateOverride
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid request body")
		return
	}
	o.ID = mux.Vars(r)["id"]

	if err := g.overrides.Update(r.Context(), &o); err != nil {
		g.writeOverrideError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (g *Gateway) handleCancelOverride(w http.ResponseWriter, r *http.Request) {
	if err := g.overrides.Cancel(r.Context(), mux.Vars(r)["id"]); err != nil {
		g.writeOverrideError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) writeOverrideError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, override.ErrNotFound):
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, override.ErrExists):
		writeError(w, http.StatusConflict, CodeInvalidRequest, err.Error())
	case errors.Is(err, override.ErrInvalidID),
		errors.Is(err, override.ErrInvalidAdapterID),
		errors.Is(err, override.ErrInvalidDiscount),
		errors.Is(err, override.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, CodeInternalError, err.Error())
	}
}
