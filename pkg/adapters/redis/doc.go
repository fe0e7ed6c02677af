// Package redis provides a Redis-backed session store and a distributed
// locker for running several engine replicas against shared state.
package redis
