package argument

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "EWI/internal/errors"
)

func TestEncodeCanonicalForms(t *testing.T) {
	port := 9200

	assert.Equal(t, "true", Encode(KindBool, true))
	assert.Equal(t, "false", Encode(KindBool, false))
	assert.Equal(t, "9200", Encode(KindNullableInt, &port))
	assert.Equal(t, "", Encode(KindNullableInt, (*int)(nil)))
	assert.Equal(t, "2048", Encode(KindUint64, uint64(2048)))
	assert.Equal(t, "a:9200,b:9300", Encode(KindStringList, []string{"a:9200", "", "  b:9300  "}))
}

func TestDecodeBoolIsCaseInsensitive(t *testing.T) {
	for _, raw := range []string{"true", "True", "TRUE", " true "} {
		v, err := Decode("INSTALLASSERVICE", KindBool, raw)
		require.NoError(t, err, raw)
		assert.Equal(t, true, v)
	}
}

func TestDecodeNullableIntEmptyIsNil(t *testing.T) {
	v, err := Decode("HTTPPORT", KindNullableInt, "")
	require.NoError(t, err)
	assert.Nil(t, v.(*int))

	v, err = Decode("HTTPPORT", KindNullableInt, "9201")
	require.NoError(t, err)
	assert.Equal(t, 9201, *v.(*int))
}

func TestDecodeConversionFailureNamesArgument(t *testing.T) {
	_, err := Decode("HTTPPORT", KindNullableInt, "ninety")
	require.Error(t, err)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeArgumentConversion))

	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, "HTTPPORT", convErr.Argument)
	assert.Equal(t, "ninety", convErr.Raw)
	assert.Contains(t, err.Error(), "HTTPPORT")
	assert.Contains(t, err.Error(), "ninety")
}

func TestSplitListDropsEmptyEntries(t *testing.T) {
	assert.Equal(t, []string{"a:9200", "b:9300"}, SplitList("a:9200,, b:9300 ,"))
	assert.Empty(t, SplitList(""))
}
