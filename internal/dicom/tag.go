// Package dicom provides the DICOM tag model and the viewer attribute
// dictionary used to project archive instances into DICOM-JSON records.
package dicom

import (
	"fmt"
	"strconv"
	"strings"
)

// Tag identifies a DICOM attribute by group and element.
type Tag struct {
	Group   uint16
	Element uint16
}

// String formats the tag in the archive's short form, e.g. "0008,0018".
func (t Tag) String() string {
	return fmt.Sprintf("%04x,%04x", t.Group, t.Element)
}

// ParseTag parses a short-form tag such as "0008,0018".
func ParseTag(s string) (Tag, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Tag{}, fmt.Errorf("dicom: invalid tag %q", s)
	}
	group, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("dicom: invalid tag group %q: %w", parts[0], err)
	}
	element, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return Tag{}, fmt.Errorf("dicom: invalid tag element %q: %w", parts[1], err)
	}
	return Tag{Group: uint16(group), Element: uint16(element)}, nil
}

// Tags referenced outside the dictionary tables.
var (
	TagPatientID         = Tag{0x0010, 0x0020}
	TagStudyInstanceUID  = Tag{0x0020, 0x000d}
	TagSeriesInstanceUID = Tag{0x0020, 0x000e}
	TagSOPInstanceUID    = Tag{0x0008, 0x0018}

	// PET radiopharmaceutical sequence and its projected sub-attributes.
	TagRadiopharmaceuticalInfo      = Tag{0x0054, 0x0016}
	TagRadionuclideTotalDose        = Tag{0x0018, 0x1074}
	TagRadionuclideHalfLife         = Tag{0x0018, 0x1075}
	TagRadiopharmaceuticalStartDT   = Tag{0x0018, 0x1078}
	TagRadiopharmaceuticalStartTime = Tag{0x0018, 0x1072}
)
