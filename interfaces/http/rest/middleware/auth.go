package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/panel-extensions/panel-reactflow/pkg/auth"
	pkgerrors "github.com/panel-extensions/panel-reactflow/pkg/errors"
)

// Authenticate requires a bearer token that grants access to graphID. A
// nil validator lets every request through.
func Authenticate(validator *auth.Validator, graphID string, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := validator.Validate(r.Header.Get("Authorization"))
			if err != nil {
				logger.Debug("Invalid token", zap.Error(err), zap.String("path", r.URL.Path))
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError(err.Error()))
				return
			}
			if !claims.CanAccess(graphID) {
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError("token does not grant access to this graph"))
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}
