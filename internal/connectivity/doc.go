// Package connectivity tracks whether the network is believed reachable.
//
// Belief comes from two sources: pushed platform signals (SetOnline /
// SetOffline) and an optional active probe loop, since platform signals can
// claim online while real connectivity is gone. The shared State is the
// single source of truth read by the cache router and the sync queue when
// deciding "try the network now or queue".
//
// An Offline->Online transition triggers the configured drain callback
// exactly once; redundant online signals inside the same online stretch do
// nothing.
package connectivity
