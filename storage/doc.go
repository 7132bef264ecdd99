// Package storage defines the Store interface backing the relay's canonical
// store. The relay reads artifacts from one Store and writes result records
// to another; both sides are pluggable behind the same interface.
package storage
