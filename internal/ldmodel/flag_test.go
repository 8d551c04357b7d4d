package ldmodel_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagcore/flagcore-go/internal/ldmodel"
	"github.com/flagcore/flagcore-go/internal/ldvalue"
)

func TestParseUsesObjectKeyWhenRecordOmitsKey(t *testing.T) {
	v, err := ldvalue.Parse([]byte(`{"value":true,"version":3}`))
	require.NoError(t, err)

	f, err := ldmodel.Parse("flag1", v)
	require.NoError(t, err)
	assert.Equal(t, "flag1", f.Key)
	assert.Equal(t, uint32(3), f.Version)
	assert.True(t, f.Value.BoolValue())
}

func TestParseRecordKeyOverridesProvidedKey(t *testing.T) {
	v, err := ldvalue.Parse([]byte(`{"key":"real","value":1}`))
	require.NoError(t, err)

	f, err := ldmodel.Parse("ignored", v)
	require.NoError(t, err)
	assert.Equal(t, "real", f.Key)
}

func TestParseRejectsNonObjectAndMissingKey(t *testing.T) {
	v, _ := ldvalue.Parse([]byte(`5`))
	_, err := ldmodel.Parse("k", v)
	assert.Error(t, err)

	v2, _ := ldvalue.Parse([]byte(`{"value":1}`))
	_, err = ldmodel.Parse("", v2)
	assert.Error(t, err)
}

func TestParseSetFailsEntirelyOnOneBadChild(t *testing.T) {
	v, err := ldvalue.Parse([]byte(`{"good":{"value":1},"bad":5}`))
	require.NoError(t, err)

	_, err = ldmodel.ParseSet(v)
	assert.Error(t, err)
}

func TestParseSetSucceedsWhenAllChildrenValid(t *testing.T) {
	v, err := ldvalue.Parse([]byte(`{"a":{"value":1,"version":1},"b":{"value":2,"version":1}}`))
	require.NoError(t, err)

	flags, err := ldmodel.ParseSet(v)
	require.NoError(t, err)
	assert.Len(t, flags, 2)
}

func TestEffectiveFlagVersionFallsBackToVersion(t *testing.T) {
	f := ldmodel.Flag{Version: 5}
	assert.Equal(t, uint32(5), f.EffectiveFlagVersion())

	fv := uint32(9)
	f.FlagVersion = &fv
	assert.Equal(t, uint32(9), f.EffectiveFlagVersion())
}

func TestEffectiveVariationDefaultsToNegativeOne(t *testing.T) {
	f := ldmodel.Flag{}
	assert.EqualValues(t, -1, f.EffectiveVariation())

	v := int32(2)
	f.Variation = &v
	assert.EqualValues(t, 2, f.EffectiveVariation())
}

func TestTombstoneIsDeletedWithNullValue(t *testing.T) {
	tomb := ldmodel.Tombstone("k", 7)
	assert.True(t, tomb.Deleted)
	assert.True(t, tomb.Value.IsNull())
	assert.Equal(t, uint32(7), tomb.Version)
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	fv := uint32(1)
	variation := int32(2)
	original := ldmodel.Flag{
		Key: "k", Value: ldvalue.Int(1), FlagVersion: &fv, Variation: &variation,
		HasReason: true, Reason: ldvalue.NewObjectBuilder().Set("kind", ldvalue.String("OFF")).Build(),
	}
	clone := original.Clone()

	*original.FlagVersion = 99
	*original.Variation = 99
	assert.Equal(t, uint32(1), *clone.FlagVersion, "clone must not see mutation through the original's pointer")
	assert.Equal(t, int32(2), *clone.Variation)
}

func TestToValueParseRoundTrip(t *testing.T) {
	fv := uint32(4)
	variation := int32(1)
	original := ldmodel.Flag{
		Key: "k", Value: ldvalue.String("x"), Version: 3, FlagVersion: &fv, Variation: &variation,
		TrackEvents: true, TrackReason: true, HasReason: true,
		Reason: ldvalue.NewObjectBuilder().Set("kind", ldvalue.String("FALLTHROUGH")).Build(),
		DebugEventsUntilDate: 12345,
	}

	back, err := ldmodel.Parse("", original.ToValue())
	require.NoError(t, err)
	assert.Equal(t, original.Key, back.Key)
	assert.Equal(t, original.Version, back.Version)
	assert.Equal(t, *original.FlagVersion, *back.FlagVersion)
	assert.Equal(t, *original.Variation, *back.Variation)
	assert.Equal(t, original.TrackEvents, back.TrackEvents)
	assert.Equal(t, original.TrackReason, back.TrackReason)
	assert.True(t, back.HasReason)
	assert.Equal(t, original.DebugEventsUntilDate, back.DebugEventsUntilDate)
}
