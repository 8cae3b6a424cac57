package dicom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTag_String(t *testing.T) {
	assert.Equal(t, "0008,0018", TagSOPInstanceUID.String())
	assert.Equal(t, "0020,000d", TagStudyInstanceUID.String())
	assert.Equal(t, "7053,1000", Tag{0x7053, 0x1000}.String())
}

func TestParseTag(t *testing.T) {
	tag, err := ParseTag("0054,0016")
	require.NoError(t, err)
	assert.Equal(t, TagRadiopharmaceuticalInfo, tag)

	_, err = ParseTag("00540016")
	assert.Error(t, err)

	_, err = ParseTag("zzzz,0016")
	assert.Error(t, err)
}

func TestDictionary_Describe(t *testing.T) {
	d := NewDictionary()

	desc, ok := d.Describe(TagStudyInstanceUID)
	require.True(t, ok)
	assert.Equal(t, Descriptor{KindString, "StudyInstanceUID"}, desc)

	desc, ok = d.Describe(Tag{0x0028, 0x0030})
	require.True(t, ok)
	assert.Equal(t, Descriptor{KindListOfFloats, "PixelSpacing"}, desc)

	_, ok = d.Describe(Tag{0x7fe0, 0x0010})
	assert.False(t, ok)
}

func TestDictionary_LevelsShareDescriptors(t *testing.T) {
	d := NewDictionary()

	// Tags declared in several levels must resolve identically everywhere.
	shared := []Tag{TagStudyInstanceUID, TagSeriesInstanceUID, {0x0008, 0x0060}}
	for _, tag := range shared {
		unified, ok := d.Describe(tag)
		require.True(t, ok, tag.String())
		for _, level := range [][]Field{d.StudyFields(), d.SeriesFields(), d.InstanceFields()} {
			for _, f := range level {
				if f.Tag == tag {
					assert.Equal(t, unified, f.Descriptor)
				}
			}
		}
	}
}

func TestDictionary_FieldOrderIsStable(t *testing.T) {
	a, b := NewDictionary(), NewDictionary()
	assert.Equal(t, a.StudyFields(), b.StudyFields())
	assert.Equal(t, a.SeriesFields(), b.SeriesFields())
	assert.Equal(t, a.InstanceFields(), b.InstanceFields())
}

func TestDictionary_AllFieldsUnique(t *testing.T) {
	d := NewDictionary()

	seen := make(map[Tag]struct{})
	for _, f := range d.AllFields() {
		_, dup := seen[f.Tag]
		assert.False(t, dup, "duplicate tag %s", f.Tag)
		seen[f.Tag] = struct{}{}
	}

	// The unified view and AllFields cover the same tag set.
	for _, f := range d.AllFields() {
		_, ok := d.Describe(f.Tag)
		assert.True(t, ok)
	}
}

func TestDictionary_RadiopharmaceuticalIsSequence(t *testing.T) {
	d := NewDictionary()
	desc, ok := d.Describe(TagRadiopharmaceuticalInfo)
	require.True(t, ok)
	assert.Equal(t, KindNone, desc.Kind)
	assert.Equal(t, "RadiopharmaceuticalInformationSequence", desc.Name)
}
