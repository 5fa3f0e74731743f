// Package aprs builds and parses the textual pieces of APRS packets:
// fixed-width latitude/longitude strings, information fields for position
// and object reports, and the monitor format "SRC>DEST,VIA:INFO" used
// everywhere else in this program.
package aprs

// Unknown marks a numeric field with no meaningful value, such as course
// when stationary or altitude without a 3D fix.  Chosen to match the
// sentinel used by libgps so values pass through unchanged.
const Unknown = -999999

// KnotsToMPH converts speed over ground from GPS units to the MPH used
// by the SmartBeaconing algorithm.
func KnotsToMPH(x float64) float64 {
	if x == Unknown {
		return Unknown
	}
	return x * 1.150779
}

// KnotsToKPH converts speed over ground to km/h for log output.
func KnotsToKPH(x float64) float64 {
	if x == Unknown {
		return Unknown
	}
	return x * 1.852
}

// MetersToFeet converts altitude for the /A=nnnnnn comment field which is
// defined in feet.
func MetersToFeet(x float64) float64 {
	if x == Unknown {
		return Unknown
	}
	return x * 3.28084
}
