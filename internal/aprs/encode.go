package aprs

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
)

// normalPosition is the human readable lat / symbol table / lon / symbol
// sequence common to several report formats.
func normalPosition(symtab, symbol byte, dlat, dlong float64, ambiguity int) string {
	if symtab != '/' && symtab != '\\' && !unicode.IsDigit(rune(symtab)) && !unicode.IsUpper(rune(symtab)) {
		log.Error("Symbol table identifier is not one of / \\ 0-9 A-Z")
	}
	if symbol < '!' || symbol > '~' {
		log.Error("Symbol code is not in range of ! to ~")
	}

	return fmt.Sprintf("%s%c%s%c",
		FormatLatitude(dlat, ambiguity), symtab,
		FormatLongitude(dlong, ambiguity), symbol)
}

// compressedPosition is the 13 character compressed form.  The cst field
// carries course/speed when moving, radio range when PHG was supplied,
// otherwise nothing.
func compressedPosition(symtab, symbol byte, dlat, dlong float64,
	power, height, gain int, course, speed int) string {

	if symtab != '/' && symtab != '\\' && !unicode.IsDigit(rune(symtab)) && !unicode.IsUpper(rune(symtab)) {
		log.Error("Symbol table identifier is not one of / \\ 0-9 A-Z")
	}

	// In compressed format the characters a-j are used for a numeric
	// overlay.  This allows the receiver to distinguish between
	// compressed and normal formats.
	if unicode.IsDigit(rune(symtab)) {
		symtab = symtab - '0' + 'a'
	}

	if symbol < '!' || symbol > '~' {
		log.Error("Symbol code is not in range of ! to ~")
	}

	var c, s, t byte

	switch {
	case speed > 0:
		var cpack = 0
		if course != Unknown {
			cpack = (course + 2) / 4
			if cpack < 0 {
				cpack += 90
			}
			if cpack >= 90 {
				cpack -= 90
			}
		}
		c = byte(cpack + '!')

		s = byte(math.Round(math.Log(float64(speed)+1.0)/math.Log(1.08))) + '!'
		t = 0x26 + '!' // current, other tracker

	case power > 0 || height > 0 || gain > 0:
		c = '{' // radio range

		if power == 0 {
			power = 10
		}
		if height == 0 {
			height = 20
		}
		if gain == 0 {
			gain = 3
		}

		// From protocol reference page 29.
		var rng = math.Sqrt(2.0 * float64(height) * math.Sqrt((float64(power)/10.0)*(float64(gain)/2.0)))

		var sv = math.Round(math.Log(rng/2.) / math.Log(1.08))
		if sv < 0 {
			sv = 0
		}
		if sv > 93 {
			sv = 93
		}
		s = byte(sv) + '!'
		t = 0x26 + '!'

	default:
		c = ' ' // cst field not used
		s = ' '
		t = '!' // avoid space
	}

	return fmt.Sprintf("%c%s%s%c%c%c%c", symtab,
		CompressedLatitude(dlat), CompressedLongitude(dlong),
		symbol, c, s, t)
}

// phgDataExtension builds the PHGphgd power/height/gain/directivity field.
func phgDataExtension(power, height, gain int, dir string) string {
	var p = math.Round(math.Sqrt(float64(power))) + '0'
	if p < '0' {
		p = '0'
	} else if p > '9' {
		p = '9'
	}

	var h = math.Round(math.Log2(float64(height)/10.0)) + '0'
	if h < '0' {
		h = '0'
	}
	// Result can go beyond '9'.

	var g = float64(gain + '0')
	if g < '0' || g > '9' {
		g = '0'
	}

	var d byte = '0'
	for i, name := range []string{"NE", "E", "SE", "S", "SW", "W", "NW", "N"} {
		if strings.EqualFold(dir, name) {
			d = byte('1' + i)
			break
		}
	}

	return fmt.Sprintf("PHG%c%c%c%c", byte(p), byte(h), byte(g), d)
}

// courseSpeedDataExtension builds the 7 character course/speed field.
// Over the air, 0 means unknown and valid courses are 1 to 360 with 360
// for north.
func courseSpeedDataExtension(course, speed int) string {
	var cse = 0
	if course != Unknown {
		cse = course
		for cse < 1 {
			cse += 360
		}
		for cse > 360 {
			cse -= 360
		}
	}

	var spd = speed
	if spd < 0 {
		spd = 0 // would include Unknown
	}
	if spd > 999 {
		spd = 999
	}

	return fmt.Sprintf("%03d/%03d", cse, spd)
}

// frequencySpec puts the frequency specification at the beginning of the
// comment field.  Resulting formats are all fixed width with a trailing
// space: "999.999MHz ", "T999 ", "+999 " (10 kHz units).  Offset must
// always be preceded by tone.
//
// Reference: http://www.aprs.org/info/freqspec.txt
func frequencySpec(freq, tone, offset float64) string {
	var result string

	if freq > 0 {
		if freq > 999.999 {
			freq = 999.999
		}
		result += fmt.Sprintf("%07.3fMHz ", freq)
	}

	if tone != Unknown {
		if tone == 0 {
			result += "Toff "
		} else {
			result += fmt.Sprintf("T%03d ", int(tone))
		}
	}

	if offset != Unknown {
		result += fmt.Sprintf("%+04d ", int(math.Round(offset*100)))
	}

	return result
}

// EncodePosition constructs the information field for a position report.
// messaging selects the '=' data type indicator instead of '!'.  altFt,
// course, tone and offset may be Unknown.  In the human readable form a
// single optional data extension follows the position; course/speed takes
// priority over PHG.
func EncodePosition(messaging, compressed bool, lat, lon float64, ambiguity, altFt int,
	symtab, symbol byte,
	power, height, gain int, dir string,
	course, speed int,
	freq, tone, offset float64,
	comment string) string {

	var dti byte = '!'
	if messaging {
		dti = '='
	}

	var result string
	if compressed {
		result = string(dti) + compressedPosition(symtab, symbol, lat, lon, power, height, gain, course, speed)
	} else {
		result = string(dti) + normalPosition(symtab, symbol, lat, lon, ambiguity)

		if course != Unknown || speed > 0 {
			result += courseSpeedDataExtension(course, speed)
		} else if power > 0 || height > 0 || gain > 0 {
			result += phgDataExtension(power, height, gain, dir)
		}
	}

	if freq != 0 || tone != 0 || offset != 0 {
		result += frequencySpec(freq, tone, offset)
	}

	// Altitude can be anywhere in the comment.  Officially it is six
	// digits; most modern applications also recognize /A=-12345 with
	// minus and five digits, which keeps the same field width.
	if altFt != Unknown {
		if altFt < -99999 {
			altFt = -99999
		}
		if altFt > 999999 {
			altFt = 999999
		}
		result += fmt.Sprintf("/A=%06d", altFt)
	}

	return result + comment
}

// EncodeObject constructs the information field for an object report.
// name can be up to 9 characters.  A zero time produces the "111111z"
// permanent object timestamp.
func EncodeObject(name string, compressed bool, when time.Time, lat, lon float64, ambiguity int,
	symtab, symbol byte,
	power, height, gain int, dir string,
	course, speed int,
	freq, tone, offset float64, comment string) string {

	var timestamp = "111111z"
	if !when.IsZero() {
		timestamp = when.UTC().Format("021504") + "z"
	}

	var result = fmt.Sprintf(";%-9.9s*%-7.7s", name, timestamp)

	if compressed {
		result += compressedPosition(symtab, symbol, lat, lon, power, height, gain, course, speed)
	} else {
		result += normalPosition(symtab, symbol, lat, lon, ambiguity)

		if course != Unknown || speed > 0 {
			result += courseSpeedDataExtension(course, speed)
		} else if power > 0 || height > 0 || gain > 0 {
			result += phgDataExtension(power, height, gain, dir)
		}
	}

	if freq != 0 || tone != 0 || offset != 0 {
		result += frequencySpec(freq, tone, offset)
	}

	return result + comment
}

// EncodeMessage constructs the information field for an APRS text message
// to addressee, with optional message id for acknowledgement.
func EncodeMessage(addressee, text, id string) string {
	var result = fmt.Sprintf(":%-9.9s:%s", addressee, text)
	if id != "" {
		result += "{" + id
	}
	return result
}
