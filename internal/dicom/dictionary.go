package dicom

// Kind declares how a raw attribute value converts into the projected record.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindInteger
	KindFloat
	KindListOfFloats
	KindListOfStrings
)

// Descriptor declares the conversion kind and output field name of an attribute.
// Descriptors are immutable once the dictionary is built.
type Descriptor struct {
	Kind Kind
	Name string
}

// Field pairs a tag with its descriptor, preserving declaration order.
type Field struct {
	Tag        Tag
	Descriptor Descriptor
}

// Dictionary is the static attribute dictionary of the viewer data source:
// three overlapping per-level views plus a unified lookup. It is read-only
// after construction.
type Dictionary struct {
	study    []Field
	series   []Field
	instance []Field
	unified  map[Tag]Descriptor
}

// NewDictionary builds the viewer attribute dictionary.
//
// A tag may appear in more than one level, but its descriptor must then be
// identical everywhere: a conflicting redefinition is a programming error and
// panics at construction time.
func NewDictionary() *Dictionary {
	d := &Dictionary{unified: make(map[Tag]Descriptor)}

	d.study = []Field{
		{TagStudyInstanceUID, Descriptor{KindString, "StudyInstanceUID"}},
		{Tag{0x0008, 0x0020}, Descriptor{KindString, "StudyDate"}},
		{Tag{0x0008, 0x0030}, Descriptor{KindString, "StudyTime"}},
		{Tag{0x0008, 0x1030}, Descriptor{KindString, "StudyDescription"}},
		{Tag{0x0010, 0x0010}, Descriptor{KindString, "PatientName"}},
		{TagPatientID, Descriptor{KindString, "PatientID"}},
		{Tag{0x0008, 0x0050}, Descriptor{KindString, "AccessionNumber"}},
		{Tag{0x0010, 0x1010}, Descriptor{KindString, "PatientAge"}},
		{Tag{0x0010, 0x0040}, Descriptor{KindString, "PatientSex"}},
	}

	d.series = []Field{
		{TagSeriesInstanceUID, Descriptor{KindString, "SeriesInstanceUID"}},
		{Tag{0x0020, 0x0011}, Descriptor{KindInteger, "SeriesNumber"}},
		{Tag{0x0008, 0x103e}, Descriptor{KindString, "SeriesDescription"}},
		{Tag{0x0008, 0x0060}, Descriptor{KindString, "Modality"}},
		{Tag{0x0018, 0x0050}, Descriptor{KindFloat, "SliceThickness"}},
	}

	d.instance = []Field{
		{Tag{0x0028, 0x0011}, Descriptor{KindInteger, "Columns"}},
		{Tag{0x0028, 0x0010}, Descriptor{KindInteger, "Rows"}},
		{Tag{0x0020, 0x0013}, Descriptor{KindInteger, "InstanceNumber"}},
		{Tag{0x0008, 0x0016}, Descriptor{KindString, "SOPClassUID"}},
		{Tag{0x0028, 0x0004}, Descriptor{KindString, "PhotometricInterpretation"}},
		{Tag{0x0028, 0x0100}, Descriptor{KindInteger, "BitsAllocated"}},
		{Tag{0x0028, 0x0101}, Descriptor{KindInteger, "BitsStored"}},
		{Tag{0x0028, 0x0103}, Descriptor{KindInteger, "PixelRepresentation"}},
		{Tag{0x0028, 0x0002}, Descriptor{KindInteger, "SamplesPerPixel"}},
		{Tag{0x0028, 0x0030}, Descriptor{KindListOfFloats, "PixelSpacing"}},
		{Tag{0x0028, 0x0102}, Descriptor{KindInteger, "HighBit"}},
		{Tag{0x0020, 0x0037}, Descriptor{KindListOfFloats, "ImageOrientationPatient"}},
		{Tag{0x0020, 0x0032}, Descriptor{KindListOfFloats, "ImagePositionPatient"}},
		{Tag{0x0020, 0x0052}, Descriptor{KindString, "FrameOfReferenceUID"}},
		{Tag{0x0008, 0x0008}, Descriptor{KindListOfStrings, "ImageType"}},
		{Tag{0x0008, 0x0060}, Descriptor{KindString, "Modality"}},
		{TagSOPInstanceUID, Descriptor{KindString, "SOPInstanceUID"}},
		{TagSeriesInstanceUID, Descriptor{KindString, "SeriesInstanceUID"}},
		{TagStudyInstanceUID, Descriptor{KindString, "StudyInstanceUID"}},
		{Tag{0x0028, 0x1050}, Descriptor{KindFloat, "WindowCenter"}},
		{Tag{0x0028, 0x1051}, Descriptor{KindFloat, "WindowWidth"}},
		{Tag{0x0008, 0x0021}, Descriptor{KindString, "SeriesDate"}},

		// PET attributes required by the viewer's SUV computation.
		{Tag{0x0008, 0x0022}, Descriptor{KindString, "AcquisitionDate"}},
		{Tag{0x0008, 0x0032}, Descriptor{KindString, "AcquisitionTime"}},
		{Tag{0x0008, 0x0031}, Descriptor{KindString, "SeriesTime"}},
		{Tag{0x0010, 0x1020}, Descriptor{KindFloat, "PatientSize"}},
		{Tag{0x0010, 0x1030}, Descriptor{KindFloat, "PatientWeight"}},
		{Tag{0x0018, 0x1242}, Descriptor{KindInteger, "ActualFrameDuration"}},
		{Tag{0x0028, 0x0051}, Descriptor{KindListOfStrings, "CorrectedImage"}},
		{Tag{0x0054, 0x1001}, Descriptor{KindString, "Units"}},
		{Tag{0x0054, 0x1102}, Descriptor{KindString, "DecayCorrection"}},
		{Tag{0x0054, 0x1300}, Descriptor{KindFloat, "FrameReferenceTime"}},
		{TagRadiopharmaceuticalInfo, Descriptor{KindNone, "RadiopharmaceuticalInformationSequence"}},

		// Vendor-private SUV scaling factors, named by raw tag.
		{Tag{0x7053, 0x1000}, Descriptor{KindFloat, "70531000"}}, // Philips SUVScaleFactor
		{Tag{0x7053, 0x1009}, Descriptor{KindFloat, "70531009"}}, // Philips ActivityConcentrationScaleFactor
		{Tag{0x0009, 0x100d}, Descriptor{KindString, "0009100d"}}, // GE PrivatePostInjectionDateTime
	}

	for _, level := range [][]Field{d.study, d.series, d.instance} {
		for _, f := range level {
			if existing, ok := d.unified[f.Tag]; ok && existing != f.Descriptor {
				panic("dicom: conflicting descriptor for tag " + f.Tag.String())
			}
			d.unified[f.Tag] = f.Descriptor
		}
	}

	return d
}

// Describe looks up a tag in the unified view.
func (d *Dictionary) Describe(tag Tag) (Descriptor, bool) {
	desc, ok := d.unified[tag]
	return desc, ok
}

// StudyFields returns the study-level fields in declaration order.
func (d *Dictionary) StudyFields() []Field { return d.study }

// SeriesFields returns the series-level fields in declaration order.
func (d *Dictionary) SeriesFields() []Field { return d.series }

// InstanceFields returns the instance-level fields in declaration order.
func (d *Dictionary) InstanceFields() []Field { return d.instance }

// AllFields returns every declared (tag, descriptor) pair exactly once.
func (d *Dictionary) AllFields() []Field {
	fields := make([]Field, 0, len(d.unified))
	seen := make(map[Tag]struct{}, len(d.unified))
	for _, level := range [][]Field{d.study, d.series, d.instance} {
		for _, f := range level {
			if _, ok := seen[f.Tag]; ok {
				continue
			}
			seen[f.Tag] = struct{}{}
			fields = append(fields, f)
		}
	}
	return fields
}
