package storage

import (
	"bytes"
	"errors"
)

var ErrNotFound = errors.New("snapshot not found")

const snapshotPrefix = byte('s')

// GetKey builds the storage key for a series snapshot:
// <1 byte kind prefix> <series name bytes>.
func GetKey(series string) []byte {
	buf := make([]byte, 1+len(series))
	buf[0] = snapshotPrefix
	copy(buf[1:], series)
	return buf
}

func GetSeriesFromKey(buf []byte) string {
	return string(buf[1:])
}

func isSnapshotKey(buf []byte) bool {
	return len(buf) > 0 && buf[0] == snapshotPrefix
}

func keyPrefix() []byte {
	return []byte{snapshotPrefix}
}

func copyBytes(buf []byte) []byte {
	if buf == nil {
		return nil
	}
	return bytes.Clone(buf)
}
