// Package gesture turns hand landmarks into stabilized keyword events.
package gesture

// Token is a predicted keyword label for one frame. TokenNone means no
// confident gesture was detected.
type Token string

const (
	TokenHello    Token = "HELLO"
	TokenThankYou Token = "THANK_YOU"
	TokenYes      Token = "YES"
	TokenNo       Token = "NO"
	TokenHelp     Token = "HELP"
	TokenPlease   Token = "PLEASE"
	TokenSorry    Token = "SORRY"
	TokenStop     Token = "STOP"
	TokenWhere    Token = "WHERE"
	TokenWater    Token = "WATER"
	TokenNone     Token = "NONE"
)

// Keywords is the closed label set the server can emit, including NONE.
var Keywords = []Token{
	TokenHello, TokenThankYou, TokenYes, TokenNo, TokenHelp,
	TokenPlease, TokenSorry, TokenStop, TokenWhere, TokenWater,
	TokenNone,
}

// Prediction is a single-frame classifier output.
type Prediction struct {
	Token      Token
	Confidence float64
}
