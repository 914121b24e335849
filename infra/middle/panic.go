package middle

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/mstgnz/storepay/infra/logger"
	"github.com/mstgnz/storepay/infra/response"
)

func logPanic(r *http.Request, rec any) {
	var tenant string
	if id := GetTenantIDFromContext(r.Context()); id != 0 {
		tenant = strconv.FormatInt(id, 10)
	}
	logger.Error("Panic recovered", fmt.Errorf("%v", rec), logger.LogContext{
		TenantID:  tenant,
		RequestID: middleware.GetReqID(r.Context()),
		Fields: map[string]any{
			"method": r.Method,
			"url":    r.URL.String(),
			"stack":  string(debug.Stack()),
		},
	})
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

// PanicRecoveryMiddleware handles panics and converts them to HTTP 500 errors
func PanicRecoveryMiddleware() func(http.Handler) http.Handler {
	return PanicRecoveryWithCustomHandler(func(w http.ResponseWriter, r *http.Request, rec any) {
		logPanic(r, rec)
		noCache(w)
		response.Error(w, http.StatusInternalServerError, "Internal server error", fmt.Errorf("an unexpected error occurred"))
	})
}

// CallbackPanicRecoveryMiddleware answers a panicking provider callback with 400 so the
// provider gets a well formed reply instead of a server error
func CallbackPanicRecoveryMiddleware() func(http.Handler) http.Handler {
	return PanicRecoveryWithCustomHandler(func(w http.ResponseWriter, r *http.Request, rec any) {
		logPanic(r, rec)
		noCache(w)
		response.Detail(w, http.StatusBadRequest, "Bad request")
	})
}

// PanicRecoveryWithCustomHandler allows custom panic handling
func PanicRecoveryWithCustomHandler(handler func(http.ResponseWriter, *http.Request, any)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					handler(w, r, rec)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
