package core

// Logger is any service that can report application events.
// expected args fmt: error, map[string]interface{}, RequestInfo, user.User
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// RequestInfo identifies the API request an event was logged for.
type RequestInfo struct {
	ID     string
	Method string
	Route  string
	Path   string
}

// Fields returns the request as custom log data.
func (r RequestInfo) Fields() map[string]interface{} {
	fields := make(map[string]interface{}, 4)
	for k, v := range map[string]string{"request_id": r.ID, "method": r.Method, "route": r.Route, "path": r.Path} {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}
