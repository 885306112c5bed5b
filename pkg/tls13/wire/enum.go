package wire

// Unknown is the sentinel numeric value callers should map to when an
// enum read off the wire is not in their recognized set. TLS 1.3
// forward-compatibility (GREASE, future extension/group/scheme
// codepoints) depends on enums degrading to "unknown" rather than
// failing decode; only a handful of strictly-bounded fields (e.g.
// ContentType) reject unrecognized values outright, and those callers
// check the value themselves instead of using this helper.
const Unknown = -1

// IntToEnum looks up v in known, returning (v, true) if recognized.
// Callers map a false second return to their own "unknown" variant
// rather than failing the decode, matching RFC 8446 §4.2's GREASE
// handling for extensions, groups, and signature schemes.
func IntToEnum[T ~uint8 | ~uint16](v T, known map[T]string) (T, bool) {
	_, ok := known[v]
	return v, ok
}
