package server

import (
	"net/http"
	"strings"

	"beatmarket/core/apperr"
	"beatmarket/core/auth"
	"beatmarket/core/resource"
	"beatmarket/logger"
	"beatmarket/repository"
)

const invalidCredentials = "Invalid email/username or password"

// SignupHandler creates a user and returns it with an access token.
func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	users := h.engine(resource.Users)
	payload, err := readPayload(r)
	if err != nil {
		writeError(w, "[Signup]", err)
		return
	}
	for _, key := range []string{"firstName", "lastName", "email", "password"} {
		if s, _ := payload[key].(string); strings.TrimSpace(s) == "" {
			writeError(w, "[Signup]", apperr.Validation("First name, last name, email, and password are required"))
			return
		}
	}

	user, err := users.Create(r.Context(), payload)
	if err != nil {
		writeError(w, "[Signup]", err)
		return
	}
	id, _ := user["id"].(string)
	email, _ := user["email"].(string)
	token, err := h.tokens.Issue(id, email)
	if err != nil {
		writeError(w, "[Signup]", apperr.Internal("Failed to generate token", err))
		return
	}

	logger.Info("[Signup] user created", logger.String("userId", id))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "User created successfully",
		"user":    user,
		"token":   token,
	})
}

// SigninHandler accepts an email or a display name in the email field.
func (h *APIHandler) SigninHandler(w http.ResponseWriter, r *http.Request) {
	users := h.engine(resource.Users)
	payload, err := readPayload(r)
	if err != nil {
		writeError(w, "[Signin]", err)
		return
	}
	identifier, _ := payload["email"].(string)
	password, _ := payload["password"].(string)
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		writeError(w, "[Signin]", apperr.Validation("Email/username and password are required"))
		return
	}

	rec, err := users.Lookup(r.Context(), repository.Filter{repository.Eq("email", strings.ToLower(identifier))})
	if apperr.Is(err, apperr.KindNotFound) {
		rec, err = users.Lookup(r.Context(), repository.Filter{repository.Eq("display_name", identifier)})
	}
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			logger.Warn("[Signin] unknown user", logger.String("identifier", identifier))
			err = apperr.Unauthorized(invalidCredentials)
		}
		writeError(w, "[Signin]", err)
		return
	}

	hash, _ := rec["password_hash"].(string)
	if !auth.CheckPasswordHash(password, hash) {
		logger.Warn("[Signin] password mismatch", logger.String("identifier", identifier))
		writeError(w, "[Signin]", apperr.Unauthorized(invalidCredentials))
		return
	}

	user := users.Present(rec)
	id, _ := rec["id"].(string)
	email, _ := rec["email"].(string)
	token, err := h.tokens.Issue(id, email)
	if err != nil {
		writeError(w, "[Signin]", apperr.Internal("Failed to generate token", err))
		return
	}

	logger.Info("[Signin] login successful", logger.String("userId", id))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
}

// ProfileHandler is the profile-page alias of PUT /api/users/{id}.
func (h *APIHandler) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	h.updateHandler(h.engine(resource.Users), "Profile updated successfully")(w, r)
}
