package frame

import "encoding/xml"

// Serialize marshals a frame value (any of the wire structs in wire.go)
// back into its XML bytes, the inverse of Parse. BLOB payloads must already
// be base64-encoded in the struct's Value field - base64 only appears on
// the wire, never in the caller's in-memory representation.
func Serialize(value interface{}) ([]byte, error) {
	return xml.Marshal(value)
}
