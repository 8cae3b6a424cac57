package aggregate

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// instanceResourceID derives the archive resource identifier of an instance
// from its identity tags: the SHA-1 of the pipe-joined patient, study,
// series and SOP instance identifiers, rendered as lowercase hex with a
// dash every eight characters.
func instanceResourceID(patientID, studyUID, seriesUID, sopUID string) string {
	sum := sha1.Sum([]byte(patientID + "|" + studyUID + "|" + seriesUID + "|" + sopUID))
	raw := hex.EncodeToString(sum[:])

	var b strings.Builder
	b.Grow(len(raw) + len(raw)/8)
	for i := 0; i < len(raw); i += 8 {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(raw[i : i+8])
	}
	return b.String()
}
