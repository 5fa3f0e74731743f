package aprs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLatitude(t *testing.T) {
	tests := []struct {
		name      string
		lat       float64
		ambiguity int
		expected  string
	}{
		{name: "north", lat: 42 + 34.61/60, expected: "4234.61N"},
		{name: "south", lat: -(33 + 52.128/60), expected: "3352.13S"},
		{name: "zero", lat: 0, expected: "0000.00N"},
		{name: "north pole", lat: 90, expected: "9000.00N"},
		{name: "out of range clamps", lat: 91, expected: "9000.00N"},
		{name: "rollover near 60 minutes", lat: 45.99999, expected: "4600.00N"},
		{name: "ambiguity 1", lat: 42 + 34.61/60, ambiguity: 1, expected: "4234.6 N"},
		{name: "ambiguity 2", lat: 42 + 34.61/60, ambiguity: 2, expected: "4234.  N"},
		{name: "ambiguity 3", lat: 42 + 34.61/60, ambiguity: 3, expected: "423 .  N"},
		{name: "ambiguity 4", lat: 42 + 34.61/60, ambiguity: 4, expected: "42  .  N"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s = FormatLatitude(tt.lat, tt.ambiguity)
			assert.Equal(t, tt.expected, s)
			assert.Len(t, s, 8, "latitude field must be fixed width")
		})
	}
}

func TestFormatLongitude(t *testing.T) {
	tests := []struct {
		name      string
		lon       float64
		ambiguity int
		expected  string
	}{
		{name: "west", lon: -(71 + 26.47/60), expected: "07126.47W"},
		{name: "east", lon: 151 + 12.66/60, expected: "15112.66E"},
		{name: "zero", lon: 0, expected: "00000.00E"},
		{name: "date line", lon: -180, expected: "18000.00W"},
		{name: "out of range clamps", lon: 181, expected: "18000.00E"},
		{name: "ambiguity 2", lon: -(71 + 26.47/60), ambiguity: 2, expected: "07126.  W"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s = FormatLongitude(tt.lon, tt.ambiguity)
			assert.Equal(t, tt.expected, s)
			assert.Len(t, s, 9, "longitude field must be fixed width")
		})
	}
}

func TestCompressedLatLong(t *testing.T) {
	// Extremes have exactly computable base 91 encodings.
	assert.Equal(t, "!!!!", CompressedLatitude(90))
	assert.Equal(t, "{{!!", CompressedLatitude(-90))
	assert.Equal(t, "!!!!", CompressedLongitude(-180))
	assert.Equal(t, "{{!!", CompressedLongitude(180))

	// All output bytes must be in the base 91 alphabet.
	for _, s := range []string{CompressedLatitude(42.576833), CompressedLongitude(-71.441167)} {
		require.Len(t, s, 4)
		for i := 0; i < len(s); i++ {
			assert.GreaterOrEqual(t, s[i], byte('!'))
			assert.LessOrEqual(t, s[i], byte('!'+90))
		}
	}
}

func TestLatitudeFromNMEA(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		hemi     byte
		expected float64
	}{
		{name: "north", field: "4234.6100", hemi: 'N', expected: 42 + 34.61/60},
		{name: "south", field: "3352.1280", hemi: 'S', expected: -(33 + 52.128/60)},
		{name: "too short", field: "42.1", hemi: 'N', expected: Unknown},
		{name: "not numeric", field: "abcd.efgh", hemi: 'N', expected: Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, LatitudeFromNMEA(tt.field, tt.hemi), 0.000001)
		})
	}
}

func TestLongitudeFromNMEA(t *testing.T) {
	assert.InDelta(t, -(71 + 26.47/60), LongitudeFromNMEA("07126.4700", 'W'), 0.000001)
	assert.InDelta(t, 151+12.66/60, LongitudeFromNMEA("15112.6600", 'E'), 0.000001)
	assert.EqualValues(t, Unknown, LongitudeFromNMEA("126.47", 'W'))
}

func TestFromGridSquare(t *testing.T) {
	var lat, lon, err = FromGridSquare("FN42")
	require.NoError(t, err)
	assert.InDelta(t, 42.5, lat, 0.6)
	assert.InDelta(t, -71.0, lon, 1.1)

	// More pairs narrow the square, center stays close.
	lat6, lon6, err := FromGridSquare("FN42MA")
	require.NoError(t, err)
	assert.InDelta(t, lat, lat6, 1.0)
	assert.InDelta(t, lon, lon6, 2.0)

	_, _, err = FromGridSquare("F")
	assert.Error(t, err)

	_, _, err = FromGridSquare("ZZ99")
	assert.Error(t, err)
}

func TestDistanceAndBearing(t *testing.T) {
	// Boston to New York, roughly.
	var d = DistanceKM(42.3601, -71.0589, 40.7128, -74.0060)
	assert.InDelta(t, 306, d, 5)

	var b = BearingDeg(42.3601, -71.0589, 40.7128, -74.0060)
	assert.InDelta(t, 234, b, 3)

	assert.InDelta(t, 0, DistanceKM(45, 45, 45, 45), 0.001)
}
