package gps

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	errBadChecksum = errors.New("nmea: checksum mismatch")
	errNoFix       = errors.New("nmea: sentence carries no fix")
	errUnsupported = errors.New("nmea: unsupported sentence")
)

// parseSentence extracts a position fix from a GGA or RMC sentence. GGA is
// preferred for its quality metadata; RMC carries position only.
func parseSentence(line string, now time.Time) (*Location, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return nil, errUnsupported
	}

	payload, err := verifyChecksum(line)
	if err != nil {
		return nil, err
	}

	fields := strings.Split(payload, ",")
	if len(fields) == 0 {
		return nil, errUnsupported
	}

	switch {
	case strings.HasSuffix(fields[0], "GGA"):
		return parseGGA(fields, now)
	case strings.HasSuffix(fields[0], "RMC"):
		return parseRMC(fields, now)
	default:
		return nil, errUnsupported
	}
}

// verifyChecksum validates the XOR checksum between '$' and '*' and returns
// the payload.
func verifyChecksum(line string) (string, error) {
	star := strings.LastIndexByte(line, '*')
	if star < 0 || star+3 > len(line) {
		return "", errBadChecksum
	}

	payload := line[1:star]
	var sum byte
	for i := 0; i < len(payload); i++ {
		sum ^= payload[i]
	}

	want, err := strconv.ParseUint(line[star+1:star+3], 16, 8)
	if err != nil || byte(want) != sum {
		return "", errBadChecksum
	}
	return payload, nil
}

// parseGGA handles: $..GGA,time,lat,N,lon,E,quality,numSats,hdop,alt,M,...
func parseGGA(fields []string, now time.Time) (*Location, error) {
	if len(fields) < 10 {
		return nil, errNoFix
	}
	if fields[6] == "" || fields[6] == "0" {
		return nil, errNoFix
	}

	lat, err := parseCoordinate(fields[2], fields[3])
	if err != nil {
		return nil, err
	}
	lon, err := parseCoordinate(fields[4], fields[5])
	if err != nil {
		return nil, err
	}

	loc := &Location{
		Latitude:  lat,
		Longitude: lon,
		Timestamp: now,
	}
	if v, err := strconv.Atoi(fields[7]); err == nil {
		loc.Satellites = v
	}
	if v, err := strconv.ParseFloat(fields[8], 64); err == nil {
		loc.HDOP = v
	}
	if v, err := strconv.ParseFloat(fields[9], 64); err == nil {
		loc.Altitude = v
	}
	return loc, nil
}

// parseRMC handles: $..RMC,time,status,lat,N,lon,E,speed,course,date,...
// Used as a fallback when no GGA sentences arrive; it has no altitude,
// satellite count or HDOP.
func parseRMC(fields []string, now time.Time) (*Location, error) {
	if len(fields) < 7 {
		return nil, errNoFix
	}
	if fields[2] != "A" {
		return nil, errNoFix
	}

	lat, err := parseCoordinate(fields[3], fields[4])
	if err != nil {
		return nil, err
	}
	lon, err := parseCoordinate(fields[5], fields[6])
	if err != nil {
		return nil, err
	}

	return &Location{
		Latitude:  lat,
		Longitude: lon,
		Timestamp: now,
	}, nil
}

// parseCoordinate converts NMEA ddmm.mmmm / dddmm.mmmm plus hemisphere into
// signed decimal degrees.
func parseCoordinate(value, hemisphere string) (float64, error) {
	if value == "" || hemisphere == "" {
		return 0, errNoFix
	}

	dot := strings.IndexByte(value, '.')
	if dot < 3 {
		return 0, fmt.Errorf("nmea: malformed coordinate %q", value)
	}

	degrees, err := strconv.ParseFloat(value[:dot-2], 64)
	if err != nil {
		return 0, fmt.Errorf("nmea: malformed coordinate %q: %w", value, err)
	}
	minutes, err := strconv.ParseFloat(value[dot-2:], 64)
	if err != nil {
		return 0, fmt.Errorf("nmea: malformed coordinate %q: %w", value, err)
	}

	deg := degrees + minutes/60
	switch hemisphere {
	case "S", "W":
		deg = -deg
	case "N", "E":
	default:
		return 0, fmt.Errorf("nmea: unknown hemisphere %q", hemisphere)
	}
	return deg, nil
}
