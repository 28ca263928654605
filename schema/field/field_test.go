package field_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/flatgraph/schema/field"
)

func TestString(t *testing.T) {
	fd := field.String("Frequency").
		Default("Hourly").
		Choices("Timestep", "Hourly", "Daily").
		Comment("reporting frequency").
		Descriptor()
	require.NoError(t, fd.Err)
	assert.Equal(t, "Frequency", fd.Name)
	assert.Equal(t, field.KindString, fd.Kind)
	assert.False(t, fd.Required)
	assert.True(t, fd.HasDefault())
	assert.Equal(t, "Hourly", fd.Default.String())
	assert.Equal(t, []string{"Timestep", "Hourly", "Daily"}, fd.Choices)
	assert.Equal(t, "reporting frequency", fd.Comment)

	fd = field.String("Name").Required().Descriptor()
	require.NoError(t, fd.Err)
	assert.True(t, fd.Required)
	assert.False(t, fd.HasDefault())

	fd = field.String("Frequency").Default("Weekly").Choices("Hourly").Descriptor()
	assert.Error(t, fd.Err, "default outside choices")

	fd = field.String("").Descriptor()
	assert.EqualError(t, fd.Err, "field name cannot be empty")
}

func TestNumber(t *testing.T) {
	fd := field.Number("Design Flow Rate").
		Min(0).
		Autosizable().
		DefaultAutosize().
		Descriptor()
	require.NoError(t, fd.Err)
	assert.Equal(t, field.KindNumber, fd.Kind)
	assert.True(t, fd.Autosizable)
	assert.False(t, fd.Autocalculatable)
	assert.True(t, fd.Default.IsSentinel(field.Autosize))
	require.NotNil(t, fd.Min)
	assert.Equal(t, 0.0, *fd.Min)
	assert.Nil(t, fd.Max)

	fd = field.Number("Efficiency").Above(0).Max(1).Default(0.8).Descriptor()
	require.NoError(t, fd.Err)
	assert.True(t, fd.ExclusiveMin)
	assert.False(t, fd.ExclusiveMax)

	fd = field.Number("Efficiency").Range(1, 0).Descriptor()
	assert.EqualError(t, fd.Err, `field "Efficiency": min 1 greater than max 0`)

	fd = field.Number("Efficiency").Range(0, 1).Default(2).Descriptor()
	assert.Error(t, fd.Err)
}

func TestInteger(t *testing.T) {
	fd := field.Integer("Number of Speeds").Range(1, 10).Default(1).Descriptor()
	require.NoError(t, fd.Err)
	assert.Equal(t, field.KindInteger, fd.Kind)
	i, ok := fd.Default.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(1), i)

	fd = field.Integer("Number of Speeds").Default(1.5).Descriptor()
	assert.EqualError(t, fd.Err, `field "Number of Speeds": default 1.5 is not an integer`)
}

func TestRef(t *testing.T) {
	fd := field.Ref("Schedule Name", "Schedule:Constant", "Schedule:Compact").Required().Descriptor()
	require.NoError(t, fd.Err)
	assert.Equal(t, field.KindReference, fd.Kind)
	assert.True(t, fd.IsRef())
	assert.False(t, fd.IsPort())
	assert.True(t, fd.AcceptsRef("schedule:constant"))
	assert.False(t, fd.AcceptsRef("Meter"))

	anyRef := field.Ref("Object Name").Descriptor()
	assert.True(t, anyRef.AcceptsRef("Meter"))

	in := field.Inlet("Inlet Node Name", "inlet").Descriptor()
	require.NoError(t, in.Err)
	assert.True(t, in.IsPort())
	assert.Equal(t, field.In, in.Dir)
	assert.Equal(t, "inlet", in.Port)

	out := field.Outlet("Outlet Node Name", "outlet").Descriptor()
	assert.Equal(t, field.Out, out.Dir)
	assert.Equal(t, "out", out.Dir.String())

	bad := field.Outlet("Outlet Node Name", "").Descriptor()
	assert.Error(t, bad.Err)
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    field.Kind
		wantErr bool
	}{
		{"string", field.KindString, false},
		{"alpha", field.KindString, false},
		{"Real", field.KindNumber, false},
		{"number", field.KindNumber, false},
		{"int", field.KindInteger, false},
		{"object-list", field.KindReference, false},
		{"node", field.KindReference, false},
		{"bytes", field.KindInvalid, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			k, err := field.ParseKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, k)
		})
	}
}

func TestDescriptor_Clone(t *testing.T) {
	fd := field.Number("Capacity").Range(0, 10).Descriptor()
	c := fd.Clone()
	*c.Min = 5
	assert.Equal(t, 0.0, *fd.Min)
	assert.Equal(t, 5.0, *c.Min)
}

func TestNormalize(t *testing.T) {
	num := field.Number("Capacity").Range(0, 100).Autosizable().Descriptor()
	integer := field.Integer("Count").Min(0).Descriptor()
	freq := field.String("Frequency").Choices("Timestep", "Hourly").Descriptor()

	t.Run("integer into number field", func(t *testing.T) {
		v, err := num.Normalize(field.IntegerValue(5))
		require.NoError(t, err)
		f, ok := v.Float()
		assert.True(t, ok)
		assert.Equal(t, 5.0, f)
		assert.Equal(t, "5", num.Encode(v))
	})

	t.Run("integral number into integer field", func(t *testing.T) {
		v, err := integer.Normalize(field.NumberValue(3))
		require.NoError(t, err)
		assert.Equal(t, "3", integer.Encode(v))

		_, err = integer.Normalize(field.NumberValue(3.5))
		assert.Error(t, err)
	})

	t.Run("integer range", func(t *testing.T) {
		for _, s := range []string{"1e20", "-1e19", "9223372036854775808"} {
			_, err := integer.Decode(s)
			assert.ErrorContains(t, err, "expects an integer", s)
		}
		v, err := integer.Decode("9007199254740992")
		require.NoError(t, err)
		assert.Equal(t, "9007199254740992", integer.Encode(v))

		_, ok := field.NumberValue(-9223372036854775808).Int()
		assert.True(t, ok)
		_, ok = field.NumberValue(9223372036854775807).Int()
		assert.False(t, ok, "rounds up to 2^63")
	})

	t.Run("delimiters", func(t *testing.T) {
		name := field.String("Name").Descriptor()
		for _, s := range []string{"Always On, Really", "A;B", "A!B", "A\nB"} {
			_, err := name.Normalize(field.StringValue(s))
			assert.ErrorIs(t, err, field.ErrDelimiter, s)
		}
		_, err := field.Ref("Schedule", "Schedule:Constant").Descriptor().Decode("On;Off")
		assert.ErrorIs(t, err, field.ErrDelimiter)
		_, err = name.Normalize(field.StringValue("Supply Fan: 1"))
		assert.NoError(t, err)
	})

	t.Run("bounds", func(t *testing.T) {
		_, err := num.Normalize(field.NumberValue(101))
		assert.Error(t, err)
		_, err = num.Normalize(field.NumberValue(-1))
		assert.Error(t, err)
		_, err = num.Normalize(field.NumberValue(100))
		assert.NoError(t, err)
	})

	t.Run("sentinels", func(t *testing.T) {
		_, err := num.Normalize(field.SentinelValue(field.Autosize))
		assert.NoError(t, err)
		_, err = num.Normalize(field.SentinelValue(field.Autocalculate))
		assert.True(t, errors.Is(err, field.ErrSentinelNotAllowed))
	})

	t.Run("choices keep declared spelling", func(t *testing.T) {
		v, err := freq.Normalize(field.StringValue("hourly"))
		require.NoError(t, err)
		assert.Equal(t, "Hourly", v.String())
		_, err = freq.Normalize(field.StringValue("Weekly"))
		assert.Error(t, err)
	})

	t.Run("kind mismatch", func(t *testing.T) {
		_, err := num.Normalize(field.StringValue("ten"))
		assert.Error(t, err)
		_, err = freq.Normalize(field.NumberValue(1))
		assert.Error(t, err)
	})

	t.Run("unset passes", func(t *testing.T) {
		v, err := num.Normalize(field.Value{})
		require.NoError(t, err)
		assert.False(t, v.IsSet())
	})
}

func TestDecodeEncode(t *testing.T) {
	num := field.Number("Capacity").Autosizable().Descriptor()

	v, err := num.Decode("  AUTOSIZE ")
	require.NoError(t, err)
	assert.True(t, v.IsSentinel(field.Autosize))
	assert.Equal(t, "Autosize", num.Encode(v))

	v, err = num.Decode("12.5")
	require.NoError(t, err)
	assert.Equal(t, "12.5", num.Encode(v))

	v, err = num.Decode("")
	require.NoError(t, err)
	assert.False(t, v.IsSet())
	assert.Equal(t, "", num.Encode(v))

	_, err = num.Decode("autocalculate")
	assert.Error(t, err)

	_, err = num.Decode("abc")
	assert.Error(t, err)

	name := field.String("Name").Descriptor()
	v, err = name.Decode("Autosize")
	require.NoError(t, err)
	s, ok := v.Str()
	assert.True(t, ok, "sentinel tokens are plain text on string fields")
	assert.Equal(t, "Autosize", s)
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"Hourly", "Hourly"},
		{1.5, "1.5"},
		{3, "3"},
		{int64(7), "7"},
		{field.Autocalculate, "Autocalculate"},
		{nil, ""},
	}
	for _, tt := range tests {
		v, err := field.ValueOf(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, v.String())
	}
	_, err := field.ValueOf([]int{1})
	assert.Error(t, err)

	assert.True(t, field.NumberValue(2).Equal(field.IntegerValue(2)))
	assert.False(t, field.StringValue("2").Equal(field.IntegerValue(2)))
}
