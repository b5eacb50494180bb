package api

import (
	"time"

	"github.com/ashley-ai/sentinel/audit"
	"github.com/ashley-ai/sentinel/password"
	"github.com/ashley-ai/sentinel/session"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
	// RevokedSessions counts sessions dropped to stay under the cap.
	RevokedSessions int `json:"revoked_sessions,omitempty"`
}

type ListSessionsResponse struct {
	Sessions []session.View `json:"sessions"`
	PaginationMeta
}

type ExtendSessionRequest struct {
	Days int `json:"days"`
}

type ExtendSessionResponse struct {
	SessionID string `json:"session_id"`
	Days      int    `json:"days"`
}

type RevokeResponse struct {
	Revoked int64 `json:"revoked"`
}

type AssessPasswordRequest struct {
	Password    string `json:"password"`
	CheckBreach bool   `json:"check_breach"`
}

type AssessPasswordResponse struct {
	password.Assessment
	Breach   *password.BreachResult `json:"breach,omitempty"`
	Feedback []string               `json:"feedback"`
}

type AuditListResponse struct {
	Records []audit.Record `json:"records"`
	PaginationMeta
}
