// Package packager is the relay's result packager. It wraps a prediction
// result in a ResultRecord carrying the deterministic store key, the fixed
// relation to the originating artifact, and the creation timestamp, then
// writes it to the canonical store. Because the key is a pure function of
// the artifact reference, at-least-once redelivery produces overwrites, not
// duplicate records.
package packager
