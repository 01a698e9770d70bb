// Package timeutil converts between naive local wall-clock timestamps
// and absolute UTC instants, and groups instants by local calendar day.
// All conversions go through time.Location per instant, so DST
// transitions are handled by the zone database rather than a fixed
// offset.
package timeutil

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Layouts for wall-clock input and display.
const (
	WallClockLayout = "2006-01-02 15:04"
	DateLayout      = "2006-01-02"
	TimeLayout      = "15:04"
)

var (
	locMu    sync.Mutex
	locCache = make(map[string]*time.Location)
)

// Location resolves a zone name, caching the lookup.
func Location(tz string) (*time.Location, error) {
	locMu.Lock()
	defer locMu.Unlock()
	if loc, ok := locCache[tz]; ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", tz, err)
	}
	locCache[tz] = loc
	return loc, nil
}

// ToUTC interprets a "YYYY-MM-DD HH:MM" wall-clock string in the named
// zone and returns the equivalent UTC instant. Wall clocks inside a DST
// fold resolve per the zone's standard rule (time.ParseInLocation).
func ToUTC(localWallClock, tz string) (time.Time, error) {
	loc, err := Location(tz)
	if err != nil {
		return time.Time{}, err
	}
	local, err := time.ParseInLocation(WallClockLayout, localWallClock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse wall clock %q: %w", localWallClock, err)
	}
	return local.UTC(), nil
}

// ToLocal converts a UTC instant into the local date and time strings
// for the named zone.
func ToLocal(utc time.Time, tz string) (date, clock string, err error) {
	loc, err := Location(tz)
	if err != nil {
		return "", "", err
	}
	local := utc.In(loc)
	return local.Format(DateLayout), local.Format(TimeLayout), nil
}

// LocalDate returns only the local calendar date of a UTC instant.
func LocalDate(utc time.Time, tz string) (string, error) {
	date, _, err := ToLocal(utc, tz)
	return date, err
}

// GroupByLocalDate returns the distinct local calendar dates of the
// given UTC instants, ascending.
func GroupByLocalDate(instants []time.Time, tz string) ([]string, error) {
	seen := make(map[string]struct{}, len(instants))
	var dates []string
	for _, t := range instants {
		d, err := LocalDate(t, tz)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}
