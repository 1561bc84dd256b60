package gps

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

// sentence frames a payload with the NMEA '$' prefix and XOR checksum.
func sentence(payload string) string {
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X", payload, sum)
}

func TestParseSentence_GGA(t *testing.T) {
	now := time.Now()
	line := sentence("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,")

	loc, err := parseSentence(line, now)
	if err != nil {
		t.Fatalf("parseSentence failed: %v", err)
	}

	if math.Abs(loc.Latitude-48.1173) > 1e-4 {
		t.Errorf("latitude = %.5f, want 48.1173", loc.Latitude)
	}
	if math.Abs(loc.Longitude-11.51667) > 1e-4 {
		t.Errorf("longitude = %.5f, want 11.51667", loc.Longitude)
	}
	if loc.Satellites != 8 {
		t.Errorf("satellites = %d, want 8", loc.Satellites)
	}
	if loc.HDOP != 0.9 {
		t.Errorf("hdop = %v, want 0.9", loc.HDOP)
	}
	if loc.Altitude != 545.4 {
		t.Errorf("altitude = %v, want 545.4", loc.Altitude)
	}
	if !loc.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", loc.Timestamp, now)
	}
}

func TestParseSentence_RMC(t *testing.T) {
	line := sentence("GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")

	loc, err := parseSentence(line, time.Now())
	if err != nil {
		t.Fatalf("parseSentence failed: %v", err)
	}
	if math.Abs(loc.Latitude-48.1173) > 1e-4 {
		t.Errorf("latitude = %.5f, want 48.1173", loc.Latitude)
	}

	// Void status means no usable fix.
	void := sentence("GPRMC,123519,V,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W")
	if _, err := parseSentence(void, time.Now()); !errors.Is(err, errNoFix) {
		t.Errorf("void RMC error = %v, want errNoFix", err)
	}
}

func TestParseSentence_SouthWestNegative(t *testing.T) {
	line := sentence("GPGGA,123519,3352.356,S,15112.804,W,1,08,0.9,5.0,M,46.9,M,,")

	loc, err := parseSentence(line, time.Now())
	if err != nil {
		t.Fatalf("parseSentence failed: %v", err)
	}
	if loc.Latitude >= 0 {
		t.Errorf("southern latitude = %.4f, want negative", loc.Latitude)
	}
	if loc.Longitude >= 0 {
		t.Errorf("western longitude = %.4f, want negative", loc.Longitude)
	}
}

func TestParseSentence_Rejections(t *testing.T) {
	testCases := []struct {
		name string
		line string
		err  error
	}{
		{"tampered checksum", "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*00", errBadChecksum},
		{"missing checksum", "$GPGGA,123519,4807.038,N", errBadChecksum},
		{"no fix quality", sentence("GPGGA,123519,4807.038,N,01131.000,E,0,00,,,M,,M,,"), errNoFix},
		{"unsupported sentence", sentence("GPGSV,3,1,11,03,03,111,00"), errUnsupported},
		{"not nmea", "hello world", errUnsupported},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseSentence(tc.line, time.Now()); !errors.Is(err, tc.err) {
				t.Errorf("error = %v, want %v", err, tc.err)
			}
		})
	}
}

func TestParseCoordinate(t *testing.T) {
	if _, err := parseCoordinate("7.038", "N"); err == nil {
		t.Error("accepted coordinate without degree digits")
	}
	if _, err := parseCoordinate("4807.038", "Q"); err == nil {
		t.Error("accepted unknown hemisphere")
	}

	deg, err := parseCoordinate("4807.038", "N")
	if err != nil {
		t.Fatalf("parseCoordinate failed: %v", err)
	}
	if math.Abs(deg-48.1173) > 1e-4 {
		t.Errorf("parseCoordinate = %.5f, want 48.1173", deg)
	}
}
