package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/formgrid/formgrid/pkg/access"
	"github.com/formgrid/formgrid/pkg/contextkeys"
	"github.com/formgrid/formgrid/pkg/observability"
)

// Trusted headers set by the authentication gateway in front of this
// service. Token verification is the gateway's job; these carry the already
// verified claims.
const (
	headerAdminKey         = "X-Admin-Key"
	headerIdentityID       = "X-Identity-Id"
	headerIdentityRoles    = "X-Identity-Roles"
	headerRemotePermission = "X-Remote-Permission"
	headerPrimaryHolder    = "X-Primary-Holder"
	headerRequestID        = "X-Request-Id"
)

// IdentityMiddleware builds the request identity from the gateway's claim
// headers and stamps each request with an ID
type IdentityMiddleware struct {
	adminKeySecret string
	logger         *observability.Logger
}

// NewIdentityMiddleware creates the identity middleware. An empty admin key
// secret disables admin-key authentication.
func NewIdentityMiddleware(adminKeySecret string, logger *observability.Logger) *IdentityMiddleware {
	return &IdentityMiddleware{
		adminKeySecret: adminKeySecret,
		logger:         logger,
	}
}

// Handler extracts the identity and request ID into the context
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		identity := m.identityFromRequest(r)

		ctx := r.Context()
		ctx = observability.WithRequestID(ctx, requestID)
		ctx = contextkeys.WithRequestID(ctx, requestID)
		if identity.ID != "" {
			ctx = observability.WithIdentityID(ctx, identity.ID)
		}
		ctx = contextkeys.WithIdentity(ctx, identity)
		ctx = observability.WithLogger(ctx, m.logger)

		w.Header().Set(headerRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *IdentityMiddleware) identityFromRequest(r *http.Request) *access.Identity {
	identity := &access.Identity{
		ID:            r.Header.Get(headerIdentityID),
		Remote:        access.RemotePermission(r.Header.Get(headerRemotePermission)),
		PrimaryHolder: r.Header.Get(headerPrimaryHolder) == "true",
	}

	if roles := r.Header.Get(headerIdentityRoles); roles != "" {
		for _, role := range strings.Split(roles, ",") {
			if role = strings.TrimSpace(role); role != "" {
				identity.Roles = append(identity.Roles, role)
			}
		}
	}

	if key := r.Header.Get(headerAdminKey); key != "" && m.adminKeySecret != "" {
		identity.AdminKey = subtle.ConstantTimeCompare([]byte(key), []byte(m.adminKeySecret)) == 1
	}

	return identity
}

// IdentityFromContext retrieves the identity placed by the middleware.
// Returns nil for requests that bypassed it.
func IdentityFromContext(ctx context.Context) *access.Identity {
	if identity, ok := ctx.Value(contextkeys.IdentityKey).(*access.Identity); ok {
		return identity
	}
	return nil
}
