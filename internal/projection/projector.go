package projection

import (
	"strconv"
	"strings"

	"github.com/pacsuite/dicomlens/internal/dicom"
)

// Projector derives flat records from raw instance attributes following the
// dictionary's per-kind conversion rules.
type Projector struct {
	dict *dicom.Dictionary
}

// NewProjector creates a projector over the given dictionary.
func NewProjector(dict *dicom.Dictionary) *Projector {
	return &Projector{dict: dict}
}

// Project builds the record for one instance from its raw short-format tags.
// Attributes absent from the input are absent from the record; malformed
// numeric text is tolerated by omitting the affected field or token.
func (p *Projector) Project(raw RawTags) Record {
	record := Record{VersionKey: SchemaVersion}

	for _, f := range p.dict.AllFields() {
		convertTag(record, f.Tag, f.Descriptor, raw)
	}

	p.projectRadiopharmaceutical(record, raw)

	return record
}

// convertTag applies the conversion rule of one attribute. It reports whether
// the attribute was present with a projectable node type; a numeric parse
// failure still counts as present, the field is just omitted. Upstream data
// routinely contains malformed numeric text and must not fail a whole record.
func convertTag(target Record, tag dicom.Tag, desc dicom.Descriptor, raw RawTags) bool {
	value, ok := raw[tag.String()]
	if !ok {
		return false
	}

	switch v := value.(type) {
	case nil:
		return false

	case []any:
		// A sequence where a flat value is declared; generic projection
		// rejects it, sequences need dedicated handling.
		return false

	case string:
		switch desc.Kind {
		case dicom.KindString:
			target[desc.Name] = v
			return true

		case dicom.KindInteger:
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32); err == nil {
				target[desc.Name] = int(n)
			}
			return true

		case dicom.KindFloat:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				target[desc.Name] = f
			}
			return true

		case dicom.KindListOfStrings:
			target[desc.Name] = splitMultiValue(v)
			return true

		case dicom.KindListOfFloats:
			floats := make([]float64, 0)
			for _, token := range splitMultiValue(v) {
				if f, err := strconv.ParseFloat(strings.TrimSpace(token), 64); err == nil {
					floats = append(floats, f)
				}
			}
			target[desc.Name] = floats
			return true

		default:
			// KindNone attributes have no generic conversion.
			return false
		}

	default:
		return false
	}
}

// splitMultiValue splits a raw value on the DICOM multiplicity separator.
func splitMultiValue(v string) []string {
	if v == "" {
		return []string{}
	}
	return strings.Split(v, `\`)
}

// projectRadiopharmaceutical handles the one designated sequence attribute:
// PET tracer metadata. The derived single-element sequence is emitted only
// when the first item carries the dose and half-life attributes plus at least
// one of the two alternative start-time attributes; the viewer needs all
// three to compute SUV, and real-world sources split the start time across
// mutually exclusive tags.
func (p *Projector) projectRadiopharmaceutical(target Record, raw RawTags) {
	value, ok := raw[dicom.TagRadiopharmaceuticalInfo.String()]
	if !ok {
		return
	}

	seq, ok := value.([]any)
	if !ok || len(seq) == 0 {
		return
	}

	first, ok := seq[0].(map[string]any)
	if !ok {
		return
	}

	info := Record{}
	if convertTag(info, dicom.TagRadionuclideHalfLife, dicom.Descriptor{Kind: dicom.KindFloat, Name: "RadionuclideHalfLife"}, RawTags(first)) &&
		convertTag(info, dicom.TagRadionuclideTotalDose, dicom.Descriptor{Kind: dicom.KindFloat, Name: "RadionuclideTotalDose"}, RawTags(first)) &&
		(convertTag(info, dicom.TagRadiopharmaceuticalStartDT, dicom.Descriptor{Kind: dicom.KindString, Name: "RadiopharmaceuticalStartDateTime"}, RawTags(first)) ||
			convertTag(info, dicom.TagRadiopharmaceuticalStartTime, dicom.Descriptor{Kind: dicom.KindString, Name: "RadiopharmaceuticalStartTime"}, RawTags(first))) {
		target["RadiopharmaceuticalInformationSequence"] = []any{map[string]any(info)}
	}
}
