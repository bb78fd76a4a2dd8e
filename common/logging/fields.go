package logging

import (
	"log/slog"
	"time"
)

// Field names shared by the bridge, the sink and relayctl.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldTraceID   = "trace_id"
	FieldEventID   = "event_id"
	FieldJobID     = "job_id"
	FieldAttempt   = "attempt"
	FieldRole      = "role"
	FieldCallerID  = "caller_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldIP        = "ip"
)

func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

func JobID(id string) slog.Attr {
	return slog.String(FieldJobID, id)
}

func Attempt(n int) slog.Attr {
	return slog.Int(FieldAttempt, n)
}

// Role accepts anything with a String method so that callers need not
// import the tokens package just to log.
func Role(role interface{ String() string }) slog.Attr {
	return slog.String(FieldRole, role.String())
}

func CallerID(id string) slog.Attr {
	return slog.String(FieldCallerID, id)
}

func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration records d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns an attribute for err; a nil error is logged as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}
