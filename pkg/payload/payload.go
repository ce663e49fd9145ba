// Package payload implements the broadcast wire format used for marker
// rendezvous: a pipe-delimited token string of the form "|<token>|".
// Receivers must tolerate arbitrary trailing fields after the token and
// treat unparsable payloads as a no-op.
package payload

import (
	"errors"
	"strconv"
	"strings"
)

// Delimiter separates fields in a broadcast payload.
const Delimiter = "|"

// ErrNoToken is returned by Decode when the payload contains no parsable
// marker token. Callers log and ignore it; a malformed broadcast is
// superseded by the next periodic one.
var ErrNoToken = errors.New("payload contains no marker token")

// Encode produces the broadcast payload for a marker token. Extra fields
// may be appended after the closing delimiter; decoders ignore them.
func Encode(token int) string {
	return Delimiter + strconv.Itoa(token) + Delimiter
}

// EncodeWithInstance appends the sender's instance ID as a trailing field
// so packet captures are attributable to a host. Decode skips it.
func EncodeWithInstance(token int, instanceID string) string {
	return Encode(token) + instanceID + Delimiter
}

// Decode extracts the marker token from a broadcast payload. The payload
// is split on the delimiter, empty segments are discarded, and the first
// remaining segment is parsed as an integer. Everything after the token
// is ignored.
func Decode(s string) (int, error) {
	for _, seg := range strings.Split(s, Delimiter) {
		if seg == "" {
			continue
		}
		token, err := strconv.Atoi(seg)
		if err != nil {
			return 0, ErrNoToken
		}
		return token, nil
	}
	return 0, ErrNoToken
}
