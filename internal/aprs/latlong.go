package aprs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
)

// FormatLatitude converts latitude in degrees to the fixed width ddmm.mmH
// form used in human readable position reports.  The result is always
// exactly 8 characters because the APRS position report has fixed width
// fields.  ambiguity of 1 to 4 blanks out that many trailing digits.
func FormatLatitude(dlat float64, ambiguity int) string {
	if dlat < -90 {
		log.Error("Latitude is less than -90.  Changing to -90.")
		dlat = -90
	}
	if dlat > 90 {
		log.Error("Latitude is greater than 90.  Changing to 90.")
		dlat = 90
	}

	var hemi byte = 'N'
	if dlat < 0 {
		dlat = -dlat
		hemi = 'S'
	}

	var ideg = int(dlat)
	var dmin = (dlat - float64(ideg)) * 60

	var smin = fmt.Sprintf("%05.2f", dmin)
	// Due to roundoff, 59.9999 could come out as "60.00".
	if smin[0] == '6' {
		smin = "00.00"
		ideg++
	}

	var slat = []byte(fmt.Sprintf("%02d%s%c", ideg, smin, hemi))

	if ambiguity >= 1 {
		slat[6] = ' '
		if ambiguity >= 2 {
			slat[5] = ' '
			if ambiguity >= 3 {
				slat[3] = ' '
				if ambiguity >= 4 {
					slat[2] = ' '
				}
			}
		}
	}

	return string(slat)
}

// FormatLongitude is the longitude counterpart of FormatLatitude.
// The result is always exactly 9 characters, dddmm.mmH.
func FormatLongitude(dlong float64, ambiguity int) string {
	if dlong < -180 {
		log.Error("Longitude is less than -180.  Changing to -180.")
		dlong = -180
	}
	if dlong > 180 {
		log.Error("Longitude is greater than 180.  Changing to 180.")
		dlong = 180
	}

	var hemi byte = 'E'
	if dlong < 0 {
		dlong = -dlong
		hemi = 'W'
	}

	var ideg = int(dlong)
	var dmin = (dlong - float64(ideg)) * 60

	var smin = fmt.Sprintf("%05.2f", dmin)
	if smin[0] == '6' {
		smin = "00.00"
		ideg++
	}

	var slong = []byte(fmt.Sprintf("%03d%s%c", ideg, smin, hemi))

	// The protocol reference says position ambiguity in latitude also applies to
	// longitude automatically.  Blanking longitude digits is not
	// necessary but it makes things clearer.
	if ambiguity >= 1 {
		slong[7] = ' '
		if ambiguity >= 2 {
			slong[6] = ' '
			if ambiguity >= 3 {
				slong[4] = ' '
				if ambiguity >= 4 {
					slong[3] = ' '
				}
			}
		}
	}

	return string(slong)
}

// CompressedLatitude converts latitude to the 4 character base 91 form.
func CompressedLatitude(dlat float64) string {
	if dlat < -90 {
		log.Error("Latitude is less than -90.  Changing to -90.")
		dlat = -90
	}
	if dlat > 90 {
		log.Error("Latitude is greater than 90.  Changing to 90.")
		dlat = 90
	}

	var y = int(math.Round(380926. * (90. - dlat)))
	return base91(y)
}

// CompressedLongitude converts longitude to the 4 character base 91 form.
func CompressedLongitude(dlong float64) string {
	if dlong < -180 {
		log.Error("Longitude is less than -180.  Changing to -180.")
		dlong = -180
	}
	if dlong > 180 {
		log.Error("Longitude is greater than 180.  Changing to 180.")
		dlong = 180
	}

	var x = int(math.Round(190463. * (180. + dlong)))
	return base91(x)
}

func base91(v int) string {
	var d0 = v / (91 * 91 * 91)
	v -= d0 * (91 * 91 * 91)
	var d1 = v / (91 * 91)
	v -= d1 * (91 * 91)
	var d2 = v / 91
	var d3 = v - d2*91

	return fmt.Sprintf("%c%c%c%c", d0+33, d1+33, d2+33, d3+33)
}

// LatitudeFromNMEA converts the ddmm.mmmm field of an NMEA sentence to
// degrees.  hemi should be 'N' or 'S'.  Returns Unknown for any error.
func LatitudeFromNMEA(s string, hemi byte) float64 {
	if len(s) < 5 || !unicode.IsDigit(rune(s[0])) || s[4] != '.' {
		return Unknown
	}

	var lat = float64(s[0]-'0')*10 + float64(s[1]-'0')
	var mins, _ = strconv.ParseFloat(s[2:], 64)
	lat += mins / 60

	if lat < 0 || lat > 90 {
		log.Error("Latitude not in range of 0 to 90.")
	}

	if hemi != 'N' && hemi != 'S' && hemi != 0 {
		log.Error("Latitude hemisphere should be N or S.")
	}

	if hemi == 'S' {
		lat = -lat
	}
	return lat
}

// LongitudeFromNMEA converts the dddmm.mmmm field of an NMEA sentence to
// degrees.  hemi should be 'E' or 'W'.  Returns Unknown for any error.
func LongitudeFromNMEA(s string, hemi byte) float64 {
	if len(s) < 6 || !unicode.IsDigit(rune(s[0])) || s[5] != '.' {
		return Unknown
	}

	var lon = float64(s[0]-'0')*100 + float64(s[1]-'0')*10 + float64(s[2]-'0')
	var mins, _ = strconv.ParseFloat(s[3:], 64)
	lon += mins / 60

	if lon < 0 || lon > 180 {
		log.Error("Longitude not in range of 0 to 180.")
	}

	if hemi != 'E' && hemi != 'W' && hemi != 0 {
		log.Error("Longitude hemisphere should be E or W.")
	}

	if hemi == 'W' {
		lon = -lon
	}
	return lon
}

const earthRadiusKM = 6371

// DistanceKM calculates the great circle distance between two locations
// with the ubiquitous haversine formula.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	lat1 *= math.Pi / 180
	lon1 *= math.Pi / 180
	lat2 *= math.Pi / 180
	lon2 *= math.Pi / 180

	var a = math.Pow(math.Sin((lat2-lat1)/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin((lon2-lon1)/2), 2)

	return earthRadiusKM * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BearingDeg calculates the initial bearing from one location toward
// another, in the range 0 to 360.
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	lat1 *= math.Pi / 180
	lon1 *= math.Pi / 180
	lat2 *= math.Pi / 180
	lon2 *= math.Pi / 180

	var b = math.Atan2(math.Sin(lon2-lon1)*math.Cos(lat2),
		math.Cos(lat1)*math.Sin(lat2)-math.Sin(lat1)*math.Cos(lat2)*math.Cos(lon2-lon1))

	b *= 180 / math.Pi
	if b < 0 {
		b += 360
	}
	return b
}

const mhUnits = 18 * 10 * 24 * 10 * 24 * 10 * 2

type mhPair struct {
	position string
	minCh    byte
	maxCh    byte
	value    int
}

var mhPairs = []mhPair{
	{"first", 'A', 'R', 10 * 24 * 10 * 24 * 10 * 2},
	{"second", '0', '9', 24 * 10 * 24 * 10 * 2},
	{"third", 'A', 'X', 10 * 24 * 10 * 2},
	{"fourth", '0', '9', 24 * 10 * 2},
	{"fifth", 'A', 'X', 10 * 2},
	{"sixth", '0', '9', 2},
}

// FromGridSquare converts a Maidenhead locator of 2 to 12 characters to
// the latitude and longitude of the center of the square.
func FromGridSquare(maidenhead string) (float64, float64, error) {
	var np = len(maidenhead) / 2 // number of pairs of characters

	if len(maidenhead)%2 != 0 || np < 1 || np > len(mhPairs) {
		return 0, 0, fmt.Errorf("maidenhead locator %q must be 1 to %d pairs of characters", maidenhead, len(mhPairs))
	}

	var mh = strings.ToUpper(maidenhead)

	var ilat, ilon int
	for n := 0; n < np; n++ {
		if mh[2*n] < mhPairs[n].minCh || mh[2*n] > mhPairs[n].maxCh ||
			mh[2*n+1] < mhPairs[n].minCh || mh[2*n+1] > mhPairs[n].maxCh {
			return 0, 0, fmt.Errorf("the %s pair of characters in maidenhead locator %q must be in range of %c thru %c",
				mhPairs[n].position, maidenhead, mhPairs[n].minCh, mhPairs[n].maxCh)
		}

		ilon += int(mh[2*n]-mhPairs[n].minCh) * mhPairs[n].value
		ilat += int(mh[2*n+1]-mhPairs[n].minCh) * mhPairs[n].value

		if n == np-1 { // last pair, take center of square
			ilon += mhPairs[n].value / 2
			ilat += mhPairs[n].value / 2
		}
	}

	var dlat = float64(ilat)/mhUnits*180 - 90
	var dlon = float64(ilon)/mhUnits*360 - 180

	return dlat, dlon, nil
}
