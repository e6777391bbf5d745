package telnet

import (
	"encoding/json"
	"strings"
)

// ParseGMCP splits an incoming GMCP subnegotiation into the package
// name and its raw JSON payload. The data is the raw bytes between
// SB 201 and IAC SE. A bare package name carries an empty payload.
func ParseGMCP(data []byte) (pkg, payload string) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", ""
	}
	if i := strings.IndexByte(text, ' '); i >= 0 {
		return text[:i], strings.TrimSpace(text[i+1:])
	}
	return text, ""
}

// EncodeGMCP encodes a package and value as a GMCP subnegotiation
// sequence: IAC SB 201 <package> <space> <json> IAC SE.
func EncodeGMCP(pkg string, value any) []byte {
	payload := pkg
	if value != nil {
		jsonData, err := json.Marshal(value)
		if err != nil {
			return nil
		}
		payload = pkg + " " + string(jsonData)
	}
	buf := make([]byte, 0, len(payload)+5)
	buf = append(buf, IAC, SB, TeloptGMCP)
	buf = append(buf, []byte(payload)...)
	buf = append(buf, IAC, SE)
	return buf
}

// EncodeGMCPHello builds the Core.Hello handshake a client sends after
// the server's GMCP offer is accepted.
func EncodeGMCPHello(client, version string) []byte {
	return EncodeGMCP("Core.Hello", map[string]string{
		"client":  client,
		"version": version,
	})
}

// EncodeGMCPSupports announces the package sets the client understands.
func EncodeGMCPSupports(packages []string) []byte {
	return EncodeGMCP("Core.Supports.Set", packages)
}
