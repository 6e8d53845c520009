package queuestore

import "fmt"

// Key prefixes for store data structures.
const (
	prefixRec = "rec/" // record envelopes
	prefixIdx = "idx/" // secondary index entries
)

// storePrefix returns the base prefix for a named store.
// Format: st/{store}/
func storePrefix(store string) string {
	return fmt.Sprintf("st/%s/", store)
}

// recKey returns the record key.
// Format: st/{store}/rec/{key}
func recKey(store, key string) []byte {
	return []byte(storePrefix(store) + prefixRec + key)
}

// recPrefix returns the prefix covering all records in a store.
func recPrefix(store string) []byte {
	return []byte(storePrefix(store) + prefixRec)
}

// idxKey returns a secondary index entry key.
// Format: st/{store}/idx/{index}/{value}/{key}
func idxKey(store, index, value, key string) []byte {
	return []byte(storePrefix(store) + prefixIdx + index + "/" + value + "/" + key)
}

// idxValuePrefix returns the prefix covering all entries of an index with a
// given value.
func idxValuePrefix(store, index, value string) []byte {
	return []byte(storePrefix(store) + prefixIdx + index + "/" + value + "/")
}

// parseKeyFromIdx extracts the record key from an index entry key, given the
// value prefix it was scanned under.
func parseKeyFromIdx(idx []byte, valuePrefix []byte) string {
	if len(idx) <= len(valuePrefix) {
		return ""
	}
	return string(idx[len(valuePrefix):])
}
