// Package queuestore implements durable named stores with secondary indexes
// on top of the shared Pebble database.
//
// Each store holds crc-framed JSON records addressed by an opaque string key
// and may declare secondary indexes. Index entries live next to the record
// under the same keyspace and are maintained atomically with the record
// write in a single batch.
//
// # Keyspace
//
//	st/{store}/rec/{key}                 - record envelope (value + index map)
//	st/{store}/idx/{index}/{value}/{key} - secondary index entry
//
// Index values are caller-formatted strings. Range scans over an index come
// back in lexicographic order of the indexed value, so time-based indexes
// should use the fixed-width TimeIndexValue encoding to make lexicographic
// order equal chronological order.
package queuestore
