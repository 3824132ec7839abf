package api

import (
	"context"

	"smflab/shared/access"
)

type ctxKey string

const (
	ctxKeyRole      ctxKey = "role"
	ctxKeyRequestID ctxKey = "request_id"
)

func WithRole(ctx context.Context, role access.Role) context.Context {
	return context.WithValue(ctx, ctxKeyRole, role)
}

// RoleFromContext returns the caller's role, Viewer when none was attached.
func RoleFromContext(ctx context.Context) access.Role {
	if role, ok := ctx.Value(ctxKeyRole).(access.Role); ok {
		return role
	}
	return access.RoleViewer
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}
