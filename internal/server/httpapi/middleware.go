package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/dmitrijs2005/annfeed/internal/server/auth"
)

type ctxKey int

const adminSubjectKey ctxKey = iota

func (s *HTTPServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

// requireAdmin accepts "Authorization: Bearer <token>" carrying an admin
// token signed with the server secret.
func (s *HTTPServer) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeJSON(w, http.StatusUnauthorized, "missing token", nil)
			return
		}

		subject, err := auth.VerifyAdminToken(token, s.secret)
		if err != nil {
			msg := common.ErrInvalidToken.Error()
			if errors.Is(err, common.ErrTokenExpired) {
				msg = common.ErrTokenExpired.Error()
			}
			writeJSON(w, http.StatusUnauthorized, msg, nil)
			return
		}

		ctx := context.WithValue(r.Context(), adminSubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func adminSubject(ctx context.Context) string {
	s, _ := ctx.Value(adminSubjectKey).(string)
	return s
}
