// Package projection converts raw archive attributes into the flat,
// versioned DICOM-JSON records served to the viewer, and owns their
// persisted wire format.
package projection

// VersionKey is the record field carrying the schema version.
const VersionKey = "Version"

// SchemaVersion is the current record schema version. Any change to the
// attribute dictionary or to the conversion rules that alters record shape
// must increment it; older cached records are then lazily invalidated on
// their next read.
const SchemaVersion = 2

// RawTags is the decoded short-format tag map of one instance, as returned
// by the archive: scalar attributes are strings, sequences are arrays.
type RawTags map[string]any

// Record is the flat projection of one instance, keyed by the dictionary's
// output field names. A record is never mutated after creation; a fresh
// request produces a fresh record.
type Record map[string]any

// String returns the named field if it is present as a string.
func (r Record) String(name string) (string, bool) {
	v, ok := r[name].(string)
	return v, ok
}

// Version returns the embedded schema version, or false if it is absent or
// not an integer. Records decoded from JSON carry the version as a float64.
func (r Record) Version() (int, bool) {
	switch v := r[VersionKey].(type) {
	case int:
		return v, true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
		return 0, false
	default:
		return 0, false
	}
}
