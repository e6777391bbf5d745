// Package telnet implements the client side of telnet option
// negotiation and the GMCP/MSDP out-of-band protocols MUD servers
// speak. The decoder turns a raw connection byte stream into lines,
// prompt fragments, and decoded subnegotiations; it never touches the
// network itself.
package telnet

// Telnet protocol constants used by option negotiation.
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Subnegotiation Begin
	GA   byte = 249 // Go Ahead; classic MUD prompt marker
	SE   byte = 240 // Subnegotiation End
	NOP  byte = 241
	EOR  byte = 239 // End Of Record; alternate prompt marker

	// Options negotiated with MUD servers
	TeloptEcho byte = 1   // server echo (password suppression)
	TeloptEOR  byte = 25  // end-of-record prompts
	TeloptMSDP byte = 69  // MSDP option number
	TeloptMSSP byte = 70  // MSSP option number
	TeloptGMCP byte = 201 // GMCP option number
)

// MSDP subnegotiation type bytes
const (
	MSDPVar   byte = 1 // Variable name follows
	MSDPVal   byte = 2 // Variable value follows
	MSDPOpen  byte = 3 // Open table/array
	MSDPClose byte = 4 // Close table/array
	MSDPArray byte = 5 // Array delimiter
)
