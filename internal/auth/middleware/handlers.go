package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/pdp-edu/unimonitor/internal/rbac"
	"github.com/pdp-edu/unimonitor/internal/records"
)

// UserSource is the slice of the record store the auth layer reads.
type UserSource interface {
	GetUser(ctx context.Context, id string) (records.User, error)
	GetUserByUsername(ctx context.Context, username string) (records.User, error)
}

var validate = validator.New()

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type loginResponse struct {
	AccessToken string       `json:"access_token"`
	User        records.User `json:"user"`
}

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(a *AuthService, users UserSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if err := validate.Struct(req); err != nil {
			http.Error(w, "username and password required", http.StatusBadRequest)
			return
		}
		u, err := users.GetUserByUsername(r.Context(), req.Username)
		switch {
		case errors.Is(err, records.ErrNotFound):
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		case err != nil:
			log.Printf("login: %v", err)
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		tok, err := a.IssueJWT(u.ID, string(u.Role))
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(loginResponse{AccessToken: tok, User: u})
	}
}

// GET /auth/user
func CurrentUserHandler(users UserSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub := SubjectFromContext(r.Context())
		if sub == "" {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		u, err := users.GetUser(r.Context(), sub)
		switch {
		case errors.Is(err, records.ErrNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
			return
		case err != nil:
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(u)
	}
}

// JWTMiddleware validates the bearer token and puts the subject and the
// claimed role in the request context.
func JWTMiddleware(a *AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			ctx := WithSubject(r.Context(), c.Sub)
			ctx = rbac.WithRole(ctx, c.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
