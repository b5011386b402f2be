// Package telnet is the network transport of the client: a TCP
// connection that strips telnet protocol sequences from the inbound
// stream, declines all option negotiation, and delivers clean lines of
// text. Outbound bytes go through a queue or, for the immediate path,
// straight to the socket.
package telnet

// Telnet protocol constants.
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Subnegotiation Begin
	GA   byte = 249 // Go Ahead
	SE   byte = 240 // Subnegotiation End
	NOP  byte = 241
)

// filter states.
const (
	stData = iota
	stIAC
	stNegotiate // after WILL/WONT/DO/DONT, option byte follows
	stSub
	stSubIAC
)

// Filter is the inbound telnet state machine. It removes IAC sequences
// and carriage returns from the stream and produces the refusal replies
// the negotiation requires.
type Filter struct {
	state int
	cmd   byte
}

// Feed consumes raw bytes and returns the cleaned text plus any protocol
// replies that must be written back to the server.
func (f *Filter) Feed(data []byte) (text, replies []byte) {
	for _, b := range data {
		switch f.state {
		case stData:
			switch b {
			case IAC:
				f.state = stIAC
			case '\r':
				// stripped; lines end on '\n'
			default:
				text = append(text, b)
			}
		case stIAC:
			switch b {
			case IAC:
				text = append(text, b) // escaped 255
				f.state = stData
			case WILL, WONT, DO, DONT:
				f.cmd = b
				f.state = stNegotiate
			case SB:
				f.state = stSub
			default:
				// NOP, GA and anything else: swallow
				f.state = stData
			}
		case stNegotiate:
			// Decline everything: we are a plain text client.
			switch f.cmd {
			case WILL:
				replies = append(replies, IAC, DONT, b)
			case DO:
				replies = append(replies, IAC, WONT, b)
			}
			f.state = stData
		case stSub:
			if b == IAC {
				f.state = stSubIAC
			}
		case stSubIAC:
			if b == SE {
				f.state = stData
			} else {
				f.state = stSub
			}
		}
	}
	return text, replies
}
