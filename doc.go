// Package chash implements content hashes and disk-backed collections of them.
//
// A content hash identifies a piece of content
// by three independent digests of it
// (MD5, SHA-1, and SHA-256)
// plus its length,
// packed into a fixed 76-byte value.
// Defeating it would require a simultaneous collision in all three algorithms
// at the same content length,
// which is the sort of thing you should worry about
// only after you have run out of asteroids to worry about.
//
// Hashes are totally ordered
// (bytewise, over all 76 bytes)
// and can be stepped forward and backward with Next and Previous,
// which is handy for expressing the open and closed ends of a range query.
// They encode to binary (the on-disk record),
// to 152 characters of base16,
// or to 104 characters of base64.
// Parse accepts either text form.
//
// A storage node can know about millions of hashes,
// too many to keep in memory.
// So this module also provides two collections backed by flat files
// of fixed 76-byte records:
//
//   - package list, an append-only sequence with random access by index,
//     spilled to disk in fixed-size partitions;
//   - package set, a sorted set whose adds and deletes are buffered in memory
//     and periodically merged into the on-disk run in one streaming pass.
//
// Package keep generalizes the set to other backends
// (SQL databases, cloud storage, an in-memory map)
// behind a common interface,
// and package sweep uses a keep to find hashes
// that are no longer wanted.
package chash
