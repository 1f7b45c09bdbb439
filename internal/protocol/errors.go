package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Construction layer.
	ErrBadRequest      = "E_BAD_REQUEST"
	ErrUnknownMachine  = "E_UNKNOWN_MACHINE"
	ErrUnknownTemplate = "E_UNKNOWN_TEMPLATE"
	ErrUnknownRecipe   = "E_UNKNOWN_RECIPE"
	ErrUnknownItem     = "E_UNKNOWN_ITEM"
	ErrIncompatible    = "E_INCOMPATIBLE"
	ErrNoFreePort      = "E_NO_FREE_PORT"
	ErrBusy            = "E_BUSY"
	ErrInternal        = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrUnknownMachine:  {},
	ErrUnknownTemplate: {},
	ErrUnknownRecipe:   {},
	ErrUnknownItem:     {},
	ErrIncompatible:    {},
	ErrNoFreePort:      {},
	ErrBusy:            {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
