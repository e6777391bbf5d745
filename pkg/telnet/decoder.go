package telnet

// ChunkKind classifies decoder output.
type ChunkKind int

const (
	ChunkLine   ChunkKind = iota // complete output line, newline stripped
	ChunkPrompt                  // partial line terminated by GA/EOR
	ChunkGMCP                    // decoded GMCP subnegotiation
	ChunkMSDP                    // decoded MSDP subnegotiation
)

// Chunk is one decoded unit of the server stream.
type Chunk struct {
	Kind    ChunkKind
	Line    string            // ChunkLine / ChunkPrompt text
	Package string            // ChunkGMCP package name
	Payload string            // ChunkGMCP raw JSON payload
	Pairs   map[string]string // ChunkMSDP variables
}

type decodeState int

const (
	stData decodeState = iota
	stCR
	stIAC
	stNegotiate // after WILL/WONT/DO/DONT, awaiting the option byte
	stSBOption  // after IAC SB, awaiting the option byte
	stSBData
	stSBIAC
)

// Decoder is a stateful telnet stream decoder. Feed it reads as they
// arrive; partial lines and split IAC sequences carry across calls.
// Negotiation replies accumulate for the caller to write back.
type Decoder struct {
	state   decodeState
	cmd     byte
	line    []byte
	sbOpt   byte
	sbData  []byte
	replies []byte

	gmcp bool
	msdp bool
}

// NewDecoder creates a decoder in its initial state.
func NewDecoder() *Decoder { return &Decoder{} }

// GMCP reports whether the server offered GMCP and we accepted.
func (d *Decoder) GMCP() bool { return d.gmcp }

// MSDP reports whether the server offered MSDP and we accepted.
func (d *Decoder) MSDP() bool { return d.msdp }

// TakeReplies returns and clears the pending negotiation bytes the
// caller must write to the server.
func (d *Decoder) TakeReplies() []byte {
	out := d.replies
	d.replies = nil
	return out
}

// Partial returns the unterminated line accumulated so far.
func (d *Decoder) Partial() string { return string(d.line) }

// Feed decodes a read's worth of bytes into chunks.
func (d *Decoder) Feed(p []byte) []Chunk {
	var out []Chunk
	for _, b := range p {
		switch d.state {
		case stData:
			switch b {
			case IAC:
				d.state = stIAC
			case '\r':
				d.state = stCR
			case '\n':
				out = append(out, d.takeLine(ChunkLine))
			default:
				d.line = append(d.line, b)
			}

		case stCR:
			// Telnet lines end CR LF; a bare CR NUL also terminates.
			d.state = stData
			switch b {
			case '\n', 0:
				out = append(out, d.takeLine(ChunkLine))
			case IAC:
				out = append(out, d.takeLine(ChunkLine))
				d.state = stIAC
			default:
				out = append(out, d.takeLine(ChunkLine))
				d.line = append(d.line, b)
			}

		case stIAC:
			switch b {
			case IAC:
				// Escaped 0xFF data byte.
				d.line = append(d.line, IAC)
				d.state = stData
			case WILL, WONT, DO, DONT:
				d.cmd = b
				d.state = stNegotiate
			case SB:
				d.state = stSBOption
			case GA, EOR:
				out = append(out, d.takeLine(ChunkPrompt))
				d.state = stData
			default:
				// NOP and anything else we ignore.
				d.state = stData
			}

		case stNegotiate:
			d.negotiate(d.cmd, b)
			d.state = stData

		case stSBOption:
			d.sbOpt = b
			d.sbData = d.sbData[:0]
			d.state = stSBData

		case stSBData:
			if b == IAC {
				d.state = stSBIAC
			} else {
				d.sbData = append(d.sbData, b)
			}

		case stSBIAC:
			switch b {
			case IAC:
				d.sbData = append(d.sbData, IAC)
				d.state = stSBData
			case SE:
				if c, ok := d.finishSubneg(); ok {
					out = append(out, c)
				}
				d.state = stData
			default:
				// Malformed; drop the subnegotiation.
				d.state = stData
			}
		}
	}
	return out
}

func (d *Decoder) takeLine(kind ChunkKind) Chunk {
	c := Chunk{Kind: kind, Line: string(d.line)}
	d.line = d.line[:0]
	return c
}

// negotiate answers one server option request. We accept GMCP, MSDP,
// EOR prompts, and server echo; everything else is declined. DO
// requests are refused outright since the client offers no options.
func (d *Decoder) negotiate(cmd, opt byte) {
	switch cmd {
	case WILL:
		switch opt {
		case TeloptGMCP:
			d.gmcp = true
			d.reply(DO, opt)
		case TeloptMSDP:
			d.msdp = true
			d.reply(DO, opt)
		case TeloptEOR, TeloptEcho:
			d.reply(DO, opt)
		default:
			d.reply(DONT, opt)
		}
	case WONT:
		switch opt {
		case TeloptGMCP:
			d.gmcp = false
		case TeloptMSDP:
			d.msdp = false
		}
	case DO:
		d.reply(WONT, opt)
	case DONT:
		// Nothing to stop doing.
	}
}

func (d *Decoder) reply(cmd, opt byte) {
	d.replies = append(d.replies, IAC, cmd, opt)
}

func (d *Decoder) finishSubneg() (Chunk, bool) {
	switch d.sbOpt {
	case TeloptGMCP:
		pkg, payload := ParseGMCP(d.sbData)
		if pkg == "" {
			return Chunk{}, false
		}
		return Chunk{Kind: ChunkGMCP, Package: pkg, Payload: payload}, true
	case TeloptMSDP:
		pairs := ParseMSDP(d.sbData)
		if len(pairs) == 0 {
			return Chunk{}, false
		}
		return Chunk{Kind: ChunkMSDP, Pairs: pairs}, true
	}
	return Chunk{}, false
}
