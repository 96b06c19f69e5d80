package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kcommon"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kerror"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/klogging"
	"github.com/xinkaiwang/volunteerplanner/libs/xklib/kmetrics"
)

var (
	RequestElapsedMsMetrics = kmetrics.CreateKmetric(context.Background(), "planner_http_elapsed_ms", "http request latency", []string{"path", "code"})
)

// ErrorResponse is the body written for any handler panic.
type ErrorResponse struct {
	Error string           `json:"error"`
	Msg   string           `json:"msg"`
	Code  kerror.ErrorCode `json:"code"`
}

// ErrorHandlingMiddleware turns a handler panic into a JSON error response. A *kerror.Kerror keeps
// its type/msg and maps its ErrorCode to the HTTP status.
// Every request ctx carries a random traceId for logging.
func ErrorHandlingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(klogging.EmbedTraceId(r.Context(), kcommon.RandomString(r.Context(), 8)))
		w.Header().Set("Content-Type", "application/json")
		startMs := kcommon.GetMonoTimeMs()
		status := http.StatusOK
		defer func() {
			if rec := recover(); rec != nil {
				logger := klogging.Error(r.Context()).With("path", r.URL.Path)
				var ke *kerror.Kerror
				switch v := rec.(type) {
				case *kerror.Kerror:
					ke = v
				case error:
					ke = kerror.Create("InternalServerError", "an unexpected error occurred").
						WithErrorCode(kerror.EC_UNKNOWN).
						With("error", v.Error())
				default:
					ke = kerror.Create("UnknownPanic", "unexpected panic with non-error value").
						WithErrorCode(kerror.EC_UNKNOWN).
						With("panic_value", v)
				}
				status = ke.ErrorCode.ToHttpErrorCode()
				if status < 500 {
					logger = klogging.Info(r.Context()).With("path", r.URL.Path)
				}
				logger.WithError(ke).Log("RequestFailed", "")

				w.WriteHeader(status)
				json.NewEncoder(w).Encode(&ErrorResponse{Error: ke.Type, Msg: ke.Msg, Code: ke.ErrorCode})
			}
			RequestElapsedMsMetrics.GetTimeSequence(r.Context(), r.URL.Path, http.StatusText(status)).Add(kcommon.GetMonoTimeMs() - startMs)
		}()
		next.ServeHTTP(w, r)
	})
}
