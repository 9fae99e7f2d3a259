package middlewares

import "context"

type ctxKey string

const (
	// ctxProviderIDKey guarda el provider id (claim sub) del token de sesión
	ctxProviderIDKey ctxKey = "provider_id"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

func setProviderID(ctx context.Context, providerID string) context.Context {
	return context.WithValue(ctx, ctxProviderIDKey, providerID)
}

func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetProviderID obtiene el provider id de la sesión autenticada.
// Cadena vacía si la ruta no pasó por WithSession.
func GetProviderID(ctx context.Context) string {
	if v := ctx.Value(ctxProviderIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
