package protocol

const (
	// Request validation / auth.
	ErrUnauthorized = "E_UNAUTHORIZED"
	ErrBadRequest   = "E_BAD_REQUEST"

	// Hub state.
	ErrNotFound = "E_NOT_FOUND"

	// External world.
	ErrBridge = "E_BRIDGE"
	ErrParse  = "E_PARSE"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrUnauthorized: {},
	ErrBadRequest:   {},
	ErrNotFound:     {},
	ErrBridge:       {},
	ErrParse:        {},
	ErrInternal:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
