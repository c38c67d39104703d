package chash

// Some hashes were produced before the length field was widened to 64 bits,
// and some were produced by a defective hasher.
// Both sets are fixed;
// these tables only ever shrink, when old content is re-ingested.

// legacyRedirects maps a mis-hashed string encoding to its correct encoding.
var legacyRedirects = map[string]string{}

// legacyLengths maps a hash whose length field overflowed
// to the content's true length.
var legacyLengths = map[Hash]uint64{}
