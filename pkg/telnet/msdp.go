package telnet

// ParseMSDP parses an incoming MSDP subnegotiation into key-value
// pairs. The data is the raw bytes between SB 69 and IAC SE. Table and
// array structure is flattened into the value text.
func ParseMSDP(data []byte) map[string]string {
	result := make(map[string]string)
	var key, val string
	inKey := false
	inVal := false

	for _, b := range data {
		switch b {
		case MSDPVar:
			if inVal && key != "" {
				result[key] = val
			}
			key = ""
			val = ""
			inKey = true
			inVal = false
		case MSDPVal:
			inKey = false
			inVal = true
		case MSDPOpen, MSDPClose, MSDPArray:
			// Flattened; delimiters become spaces in the value.
			if inVal && val != "" {
				val += " "
			}
		default:
			if inKey {
				key += string(b)
			} else if inVal {
				val += string(b)
			}
		}
	}
	if inVal && key != "" {
		result[key] = val
	}
	return result
}

// EncodeMSDP encodes key-value pairs as an MSDP subnegotiation
// sequence: IAC SB 69 MSDP_VAR "key" MSDP_VAL "value" ... IAC SE.
// Used for REPORT/SEND requests to the server.
func EncodeMSDP(pairs map[string]string) []byte {
	buf := []byte{IAC, SB, TeloptMSDP}
	for k, v := range pairs {
		buf = append(buf, MSDPVar)
		buf = append(buf, []byte(k)...)
		buf = append(buf, MSDPVal)
		buf = append(buf, []byte(v)...)
	}
	buf = append(buf, IAC, SE)
	return buf
}
