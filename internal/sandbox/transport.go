package sandbox

import (
	"encoding/base64"
	"fmt"
)

// EncodeBytes converts binary file content into the text form carried across
// the remote runtime boundary.
func EncodeBytes(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBytes reverses EncodeBytes.
func DecodeBytes(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode sandbox payload: %w", err)
	}
	return data, nil
}
