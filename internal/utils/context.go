package utils

import (
	"context"
)

type contextKey string

const ContextUsernameKey contextKey = "username"

// DefaultUploader is used when no identity reaches the request.
const DefaultUploader = "admin"

func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, ContextUsernameKey, username)
}

func GetUsernameFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(ContextUsernameKey)
	s, ok := v.(string)
	return s, ok && s != ""
}

// UploaderFromContext returns the request identity or DefaultUploader.
func UploaderFromContext(ctx context.Context) string {
	if s, ok := GetUsernameFromContext(ctx); ok {
		return s
	}
	return DefaultUploader
}

const ContextRoleKey contextKey = "role"

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ContextRoleKey, role)
}

func GetRoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ContextRoleKey).(string)
	return s
}

// IsStaff reports whether the request identity may see every uploader's data.
func IsStaff(ctx context.Context) bool {
	return GetRoleFromContext(ctx) == RoleAdmin
}
