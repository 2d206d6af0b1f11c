package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request validation.
	ErrBadPattern      = "E_BAD_PATTERN"
	ErrBadRelation     = "E_BAD_RELATION"
	ErrUnknownCategory = "E_UNKNOWN_CATEGORY"
	ErrUnknownCamera   = "E_UNKNOWN_CAMERA"

	// Resolution outcomes. None of these fail the pass; they annotate
	// partial results.
	ErrUnsatisfiableRegion = "E_UNSATISFIABLE_REGION"
	ErrInvalidReference    = "E_INVALID_REFERENCE"
	ErrReferenceCycle      = "E_REFERENCE_CYCLE"
	ErrOutOfBounds         = "E_OUT_OF_BOUNDS"
	ErrTerrainInconsistent = "E_TERRAIN_INCONSISTENT"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:     {},
	ErrBadPattern:          {},
	ErrBadRelation:         {},
	ErrUnknownCategory:     {},
	ErrUnknownCamera:       {},
	ErrUnsatisfiableRegion: {},
	ErrInvalidReference:    {},
	ErrReferenceCycle:      {},
	ErrOutOfBounds:         {},
	ErrTerrainInconsistent: {},
	ErrInternal:            {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
