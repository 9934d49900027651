package http

import (
	"github.com/studyshare-api/internal/application/auth"
	"github.com/studyshare-api/internal/application/material"
	"github.com/studyshare-api/internal/application/user"
	jwtinfra "github.com/studyshare-api/internal/infrastructure/jwt"
	"github.com/studyshare-api/internal/transport/http/handler"
)

// Deps holds the application services the router exposes.
type Deps struct {
	UserService     user.Service
	AuthService     auth.Service
	MaterialService material.Service
	JWTProvider     *jwtinfra.Provider
	// Sweepers are reported on /health-check/sweepers, keyed by name.
	Sweepers map[string]handler.PendingCounter
}
