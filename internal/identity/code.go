package identity

import (
	"fmt"
	"strings"

	"github.com/rfsentry/cellmon/internal/band"
)

const codeLength = 15

// Type allocation prefixes used when shaping synthetic handset codes. These
// are presentation values only; they make a code look like the hardware
// identities of the technology it was classified as.
var tacPrefixes = map[band.Technology]string{
	band.GSM:  "35209900",
	band.UMTS: "35391805",
	band.LTE:  "35824005",
}

// HandsetCode builds a synthetic, checksum-valid hardware-identity-shaped
// string for a handset-class signal. The serial portion is derived from the
// device id so the code is stable across observations.
func HandsetCode(tech band.Technology, deviceID string) string {
	prefix, ok := tacPrefixes[tech]
	if !ok {
		prefix = tacPrefixes[band.LTE]
	}

	var serial strings.Builder
	for _, c := range deviceID {
		if serial.Len() == codeLength-1-len(prefix) {
			break
		}
		serial.WriteByte(byte('0' + int(c)%10))
	}
	for serial.Len() < codeLength-1-len(prefix) {
		serial.WriteByte('0')
	}

	body := prefix + serial.String()
	return body + string(rune('0'+checkDigit(body)))
}

// InfrastructureCode builds the identifier shape used for base-station-class
// emitters. It is visibly distinct from handset codes and carries the band.
func InfrastructureCode(tech band.Technology, bandNum int, deviceID string) string {
	id := deviceID
	if len(id) > 6 {
		id = id[:6]
	}
	return fmt.Sprintf("BTS-%s%d-%s", tech, bandNum, strings.ToUpper(id))
}

// ValidCode reports whether a synthetic handset code passes its own mod-10
// check digit validation.
func ValidCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return checkDigit(code[:codeLength-1]) == int(code[codeLength-1]-'0')
}

// checkDigit computes the mod-10 (Luhn) check digit over a numeric string,
// doubling digits at odd 0-indexed positions.
func checkDigit(body string) int {
	total := 0
	for i, c := range body {
		d := int(c - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		total += d
	}
	return (10 - total%10) % 10
}
