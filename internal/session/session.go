package session

// Role distinguishes the two ends of a session.
type Role string

const (
	RoleHost   Role = "host"
	RoleGuest  Role = "guest"
	RoleViewer Role = "viewer"
)

// refCounted is implemented by the shared signaling client. Sessions never
// own the channel's lifetime; they only hold a reference while mounted.
type refCounted interface {
	Retain()
	Release()
}

func retain(v any) {
	if rc, ok := v.(refCounted); ok {
		rc.Retain()
	}
}

func release(v any) {
	if rc, ok := v.(refCounted); ok {
		rc.Release()
	}
}
