package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/zapuscina/internal/auth"
	"github.com/erazemk/zapuscina/internal/model"
	"github.com/erazemk/zapuscina/internal/store"
)

// LoginPage handles GET /login. It offers staff and bidder sign-in.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, http.StatusOK, "login.html", &PageData{Title: "Sign in"})
}

// LoginSubmit handles POST /login for staff accounts.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")

	if username == "" || password == "" {
		s.loginError(w, http.StatusBadRequest, "Enter your username and password.")
		return
	}

	user, err := s.Authenticator.Authenticate(r.Context(), username, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		slog.Warn("web login failed", "username", username, "remote", r.RemoteAddr)
		s.loginError(w, http.StatusUnauthorized, "Incorrect username or password.")
		return
	}
	if err != nil {
		slog.Error("authenticating user", "error", err)
		s.loginError(w, http.StatusInternalServerError, "Sign-in failed, please try again.")
		return
	}

	token, err := auth.GenerateToken(s.JWTSecret, user.ID, user.Username, user.Role)
	if err != nil {
		s.loginError(w, http.StatusInternalServerError, "Sign-in failed, please try again.")
		return
	}

	setAuthCookie(w, token, auth.TokenExpiry)
	http.Redirect(w, r, "/items", http.StatusSeeOther)
}

// BidderSubmit handles POST /login/bidder. Bidders are identified by the
// digits of their phone number.
func (s *Server) BidderSubmit(w http.ResponseWriter, r *http.Request) {
	phone, err := model.BidderID(r.FormValue("phone"))
	if err != nil {
		s.loginError(w, http.StatusBadRequest, "Enter a phone number with at least 10 digits.")
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = model.DefaultBidderName
	}

	token, err := auth.GenerateToken(s.JWTSecret, 0, phone, model.RoleBidder)
	if err != nil {
		s.loginError(w, http.StatusInternalServerError, "Sign-in failed, please try again.")
		return
	}

	slog.Info("bidder signed in", "bidder", phone, "name", name)
	setAuthCookie(w, token, auth.BidderTokenExpiry)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) loginError(w http.ResponseWriter, status int, msg string) {
	s.Templates.Render(w, status, "login.html", &PageData{Title: "Sign in", Error: msg})
}

// Logout handles POST /logout. The token is revoked so a copied cookie
// stops working too.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if claims := cookieClaims(r, s.JWTSecret, s.DB); claims != nil && claims.ID != "" && claims.ExpiresAt != nil {
		if err := store.RevokeToken(r.Context(), s.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
			slog.Error("failed to revoke token", "error", err)
		}
	}
	clearAuthCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
