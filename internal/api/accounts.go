package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/herpkeeper/herpkeeper-core/internal/auth"
	"github.com/herpkeeper/herpkeeper-core/internal/profile"
)

// Token TTL defaults, in minutes. Config values override these.
const (
	defaultAccessTokenTTL  = 5
	defaultRefreshTokenTTL = 7 * 24 * 60
)

// minPasswordLength is the minimum accepted password length.
const minPasswordLength = 8

// registerRequest is the request body for POST /api/register.
type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// authenticateRequest is the request body for POST /api/authenticate.
type authenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// refreshRequest is the request body for POST /api/token and POST /api/logout.
type refreshRequest struct {
	Username     string `json:"username"`
	RefreshToken string `json:"refreshToken"`
}

// tokenResponse is the response body for authenticate and token refresh.
type tokenResponse struct {
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
	TokenType    string           `json:"tokenType"`
	ExpiresIn    int              `json:"expiresIn"`
	Profile      *profile.Profile `json:"profile,omitempty"`
}

// handleRegister creates a new, inactive profile.
//
// The activation key is delivered out of band; it is never returned in the
// response body.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if !auth.IsValidUsername(req.Username) {
		writeBadRequest(w, "username must be 1-64 characters of letters, digits, dot, underscore, or hyphen")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return
	}
	if req.Email == "" {
		writeBadRequest(w, "email is required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("hashing password", "error", err)
		writeInternalError(w, "failed to register")
		return
	}

	p := &profile.Profile{
		Username:     req.Username,
		PasswordHash: hash,
		Name:         req.Name,
		Email:        req.Email,
		Role:         auth.RoleMember,
		FoodTypes:    []string{},
	}

	if err := s.profiles.Create(r.Context(), p); err != nil {
		switch {
		case errors.Is(err, profile.ErrUsernameExists):
			writeConflict(w, "username already exists")
		case errors.Is(err, profile.ErrEmailExists):
			writeConflict(w, "email already exists")
		default:
			s.logger.Error("creating profile", "username", req.Username, "error", err)
			writeInternalError(w, "failed to register")
		}
		return
	}

	// The key would normally go out via the mailer; logged for operators
	// running without one.
	s.logger.Debug("activation key issued",
		"username", p.Username,
		"activation_key", p.ActivationKey,
	)

	writeJSON(w, http.StatusCreated, p)
}

// handleActivateAccount activates a registered profile.
//
// Query parameters: username, key. The key is single-use; a second attempt
// with the same key fails.
func (s *Server) handleActivateAccount(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	key := r.URL.Query().Get("key")
	if username == "" || key == "" {
		writeBadRequest(w, "username and key query parameters are required")
		return
	}

	p, err := s.profiles.Activate(r.Context(), username, key)
	if err != nil {
		switch {
		case errors.Is(err, profile.ErrNotFound):
			writeNotFound(w, "profile not found")
		case errors.Is(err, profile.ErrBadActivation):
			writeBadRequest(w, "activation key does not match")
		default:
			s.logger.Error("activating profile", "username", username, "error", err)
			writeInternalError(w, "failed to activate")
		}
		return
	}

	s.notifier.ProfileUpdated(p.ID, p.Username)
	writeJSON(w, http.StatusOK, p)
}

// handleAuthenticate verifies credentials and issues an access token plus
// a refresh token.
//
// Failed lookups and failed password checks return the same 401 so the
// response does not reveal which usernames exist.
func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	p, err := s.profiles.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("looking up profile", "username", req.Username, "error", err)
		writeInternalError(w, "failed to authenticate")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, p.PasswordHash)
	if err != nil || !ok {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	if !p.Active {
		writeForbidden(w, "profile is not activated")
		return
	}

	resp, err := s.issueTokens(r, p)
	if err != nil {
		s.logger.Error("issuing tokens", "username", p.Username, "error", err)
		writeInternalError(w, "failed to authenticate")
		return
	}
	resp.Profile = p

	writeJSON(w, http.StatusOK, resp)
}

// handleRefreshToken exchanges a valid refresh token for a fresh access
// token. Refresh tokens rotate: the presented token is consumed and a new
// one is returned.
func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.RefreshToken == "" {
		writeBadRequest(w, "username and refreshToken are required")
		return
	}

	if _, err := s.tokens.GetByUsernameAndToken(r.Context(), req.Username, req.RefreshToken); err != nil {
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			writeUnauthorized(w, "refresh token has expired")
		case errors.Is(err, auth.ErrTokenInvalid):
			writeUnauthorized(w, "invalid refresh token")
		default:
			s.logger.Error("looking up refresh token", "username", req.Username, "error", err)
			writeInternalError(w, "failed to refresh token")
		}
		return
	}

	p, err := s.profiles.GetByUsername(r.Context(), req.Username)
	if err != nil {
		writeUnauthorized(w, "invalid refresh token")
		return
	}
	if !p.Active {
		writeForbidden(w, "profile is not activated")
		return
	}

	// Consume the presented token before minting its replacement.
	if err := s.tokens.DeleteByUsernameAndToken(r.Context(), req.Username, req.RefreshToken); err != nil {
		s.logger.Error("rotating refresh token", "username", req.Username, "error", err)
		writeInternalError(w, "failed to refresh token")
		return
	}

	resp, err := s.issueTokens(r, p)
	if err != nil {
		s.logger.Error("issuing tokens", "username", p.Username, "error", err)
		writeInternalError(w, "failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLogout revokes a single refresh token, ending that session. The
// access token simply ages out.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Username == "" || req.RefreshToken == "" {
		writeBadRequest(w, "username and refreshToken are required")
		return
	}

	if err := s.tokens.DeleteByUsernameAndToken(r.Context(), req.Username, req.RefreshToken); err != nil {
		s.logger.Error("revoking refresh token", "username", req.Username, "error", err)
		writeInternalError(w, "failed to log out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// issueTokens mints an access token and stores a new refresh token for the
// given profile.
func (s *Server) issueTokens(r *http.Request, p *profile.Profile) (*tokenResponse, error) {
	accessTTL := s.secCfg.JWT.AccessTokenTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenTTL
	}
	refreshTTL := s.secCfg.JWT.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTokenTTL
	}

	access, err := auth.GenerateAccessToken(p.Username, p.Role, s.secCfg.JWT.Secret, accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	token := &auth.RefreshToken{
		Username:  p.Username,
		TokenHash: auth.HashToken(refresh),
		ExpiresAt: time.Now().Add(time.Duration(refreshTTL) * time.Minute),
	}
	if err := s.tokens.Create(r.Context(), token); err != nil {
		return nil, err
	}

	return &tokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    accessTTL * 60,
	}, nil
}
