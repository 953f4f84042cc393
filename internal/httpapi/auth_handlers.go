package httpapi

import (
	"errors"
	"net/http"
	"time"

	"gatehouse.org/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type identityPayload struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	RoleID      int64    `json:"roleId"`
	Active      bool     `json:"active"`
	Permissions []string `json:"permissions"`
}

type loginResponse struct {
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
	ExpiresIn   int64           `json:"expiresIn"`
	Identity    identityPayload `json:"identity"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			// One message for unknown email, missing hash and wrong
			// password alike.
			writeError(w, http.StatusUnauthorized, "invalid email or password")
		case errors.Is(err, auth.ErrAccountInactive):
			writeError(w, http.StatusUnauthorized, "account inactive, contact administrator")
		case errors.Is(err, auth.ErrNoRoleAssigned):
			writeError(w, http.StatusUnauthorized, "no role assigned")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		ExpiresIn:   int64(time.Until(result.ExpiresAt).Seconds()),
		Identity:    identityToPayload(result.Identity),
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	RoleID   int64  `json:"roleId"`
}

type userPayload struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	acc, err := a.auth.Register(r.Context(), req.Name, req.Email, req.Password, req.RoleID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			writeError(w, http.StatusBadRequest, "email already registered")
		case errors.Is(err, auth.ErrInvalidInput):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	user := userPayload{
		ID:        acc.ID,
		Name:      acc.Name,
		Email:     acc.Email,
		Active:    acc.Active,
		CreatedAt: acc.CreatedAt,
	}
	if role, ok := acc.PrimaryRole(); ok {
		user.Role = role.Name
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var actorID int64
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		actorID = identity.ID
	}
	// Stateless: the token stays valid until expiry, this only audits.
	a.auth.Logout(r.Context(), actorID)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func identityToPayload(id auth.Identity) identityPayload {
	perms := id.Permissions
	if perms == nil {
		perms = []string{}
	}
	return identityPayload{
		ID:          id.ID,
		Name:        id.Name,
		Email:       id.Email,
		Role:        id.Role,
		RoleID:      id.RoleID,
		Active:      id.Active,
		Permissions: perms,
	}
}
