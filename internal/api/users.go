package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"appointment-booking-api/internal/directory"
	"appointment-booking-api/internal/middleware"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s, err := a.dir.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	setSessionCookie(w, s)
	a.respond(w, http.StatusCreated, s)
}

func setSessionCookie(w http.ResponseWriter, s directory.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		a.fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		a.fail(w, http.StatusBadRequest, "email and password required")
		return
	}

	s, err := a.dir.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	setSessionCookie(w, s)
	a.respond(w, http.StatusOK, s)
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if tok := middleware.TokenFrom(r.Context()); tok != "" {
		if err := a.dir.Logout(r.Context(), tok); err != nil {
			a.failErr(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	a.respond(w, http.StatusOK, errorResponse{Message: "logged out"})
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.dir.ListUsers(r.Context())
	if err != nil {
		a.failErr(w, r, err)
		return
	}
	a.respond(w, http.StatusOK, users)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.dir.DeleteUser(r.Context(), id); err != nil {
		a.failErr(w, r, err)
		return
	}
	a.respond(w, http.StatusOK, errorResponse{Message: "user " + id + " deleted"})
}
