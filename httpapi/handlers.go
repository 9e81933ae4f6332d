package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	doora "github.com/doora-app/doora"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "malformed multipart body", nil)
		return
	}

	input := doora.RegisterInput{
		Firstname: r.FormValue("firstname"),
		Lastname:  r.FormValue("lastname"),
		Email:     r.FormValue("email"),
		Phone:     r.FormValue("phone"),
		Password:  r.FormValue("password"),
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, "upload an avatar", nil)
		return
	}
	defer file.Close()
	input.Avatar = file
	input.AvatarContentType = header.Header.Get("Content-Type")

	acct, err := s.engine.Register(requestContext(r), input)
	if err != nil {
		// The account survives a failed verification dispatch; report
		// creation and let the client trigger a resend.
		if errors.Is(err, doora.ErrVerificationDispatch) && acct != nil {
			writeEnvelope(w, http.StatusCreated,
				"user registered, verification email could not be sent", accountPayload(acct))
			return
		}
		writeError(w, err)
		return
	}

	writeEnvelope(w, http.StatusCreated,
		"user registered successfully, please verify your email", accountPayload(acct))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	res, err := s.engine.Login(requestContext(r), body.Email, body.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	s.setAuthCookies(w, res.AccessToken, res.RefreshToken)
	writeEnvelope(w, http.StatusOK, "user logged in successfully", map[string]any{
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
		"user":         accountPayload(res.Account),
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	acct, err := s.engine.VerifyEmail(requestContext(r), body.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "email verified successfully", accountPayload(acct))
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := s.engine.ResendVerification(requestContext(r), body.Email); err != nil {
		writeError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "verification email sent successfully", nil)
}

func (s *Server) handleResetPasswordMail(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := s.engine.RequestPasswordReset(requestContext(r), body.Email); err != nil {
		writeError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "reset password email sent successfully", nil)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	if err := s.engine.ConfirmPasswordReset(requestContext(r), body.Token, body.Password); err != nil {
		writeError(w, err)
		return
	}

	writeEnvelope(w, http.StatusOK, "password reset successfully", nil)
}

func (s *Server) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	token, ok := s.refreshTokenFromRequest(r)
	if !ok {
		writeEnvelope(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	res, err := s.engine.Refresh(requestContext(r), token)
	if err != nil {
		// Only a dead or replayed token invalidates the session. A
		// store outage must not log the user out.
		if errors.Is(err, doora.ErrRefreshInvalid) || errors.Is(err, doora.ErrRefreshReuse) {
			s.clearAuthCookies(w)
		}
		writeError(w, err)
		return
	}

	s.setAuthCookies(w, res.AccessToken, res.RefreshToken)
	writeEnvelope(w, http.StatusOK, "access token refreshed", map[string]any{
		"accessToken":  res.AccessToken,
		"refreshToken": res.RefreshToken,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, ok := s.refreshTokenFromRequest(r); ok {
		if err := s.engine.Logout(requestContext(r), token); err != nil && !errors.Is(err, doora.ErrRefreshInvalid) {
			writeError(w, err)
			return
		}
	}

	s.clearAuthCookies(w)
	writeEnvelope(w, http.StatusOK, "user logged out successfully", nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	res, ok := AuthResultFromContext(r.Context())
	if !ok {
		writeEnvelope(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}

	writeEnvelope(w, http.StatusOK, "ok", map[string]any{
		"id":    res.AccountID,
		"email": res.Email,
		"name":  res.Name,
		"role":  res.Role,
	})
}

// refreshTokenFromRequest reads the refresh token from the cookie first,
// then from a JSON body {"refreshToken": "..."}.
func (s *Server) refreshTokenFromRequest(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.RefreshToken != "" {
		return body.RefreshToken, true
	}
	return "", false
}

func (s *Server) setAuthCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, s.authCookie(accessCookieName, access, int(s.config.AccessCookieTTL.Seconds())))
	http.SetCookie(w, s.authCookie(refreshCookieName, refresh, int(s.config.RefreshCookieTTL.Seconds())))
}

func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, s.authCookie(accessCookieName, "", -1))
	http.SetCookie(w, s.authCookie(refreshCookieName, "", -1))
}

func (s *Server) authCookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   s.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeEnvelope(w, http.StatusBadRequest, "malformed request body", nil)
		return false
	}
	return true
}

func accountPayload(a *doora.Account) map[string]any {
	if a == nil {
		return nil
	}
	return map[string]any{
		"id":         a.ID,
		"email":      a.Email,
		"phone":      a.Phone,
		"firstname":  a.Firstname,
		"lastname":   a.Lastname,
		"role":       a.Role,
		"avatar":     a.AvatarURL,
		"isVerified": a.IsVerified,
		"createdAt":  a.CreatedAt,
	}
}

func requestContext(r *http.Request) context.Context {
	ctx := r.Context()

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	ctx = doora.WithClientIP(ctx, host)
	ctx = doora.WithUserAgent(ctx, r.UserAgent())

	return ctx
}
