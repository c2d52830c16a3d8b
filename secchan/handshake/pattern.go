package handshake

type token uint8

const (
	tokenE token = iota + 1
	tokenS
	tokenEE
	tokenES
	tokenSE
	tokenSS
)

func (t token) String() string {
	switch t {
	case tokenE:
		return "e"
	case tokenS:
		return "s"
	case tokenEE:
		return "ee"
	case tokenES:
		return "es"
	case tokenSE:
		return "se"
	case tokenSS:
		return "ss"
	default:
		return "?"
	}
}

// patternXX lists the tokens of each message. Even positions are written
// by the initiator.
var patternXX = [][]token{
	{tokenE},
	{tokenE, tokenEE, tokenS, tokenES},
	{tokenS, tokenSE},
}

// Role is fixed for the lifetime of a handshake.
type Role uint8

const (
	Initiator Role = iota + 1
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	default:
		return "unknown"
	}
}

// writesAt reports whether role sends the message at position pos.
func (r Role) writesAt(pos int) bool {
	return (pos%2 == 0) == (r == Initiator)
}
