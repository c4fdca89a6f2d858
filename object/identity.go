package object

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Identity is a Git author/committer/tagger line in its raw form:
// "name <email> timestamp timezone", per spec §3's commit signature grammar.
type Identity struct {
	Name      string
	Email     string
	Timestamp int64
	Timezone  string // "+HHMM" or "-HHMM"
}

// ParseIdentity parses a "name <email> timestamp timezone" string.
func ParseIdentity(identity string) (Identity, error) {
	emailEnd := strings.LastIndex(identity, ">")
	if emailEnd == -1 {
		return Identity{}, fmt.Errorf("%w: missing '>' in identity %q", ErrInvalidSignature, identity)
	}
	emailStart := strings.LastIndex(identity[:emailEnd], "<")
	if emailStart == -1 {
		return Identity{}, fmt.Errorf("%w: missing '<' in identity %q", ErrInvalidSignature, identity)
	}

	name := strings.TrimSpace(identity[:emailStart])
	email := identity[emailStart+1 : emailEnd]

	timeStr := strings.TrimSpace(identity[emailEnd+1:])
	parts := strings.Split(timeStr, " ")
	if len(parts) != 2 {
		return Identity{}, fmt.Errorf("%w: invalid time segment %q", ErrInvalidTimestamp, timeStr)
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidTimestamp, err)
	}

	return Identity{Name: name, Email: email, Timestamp: timestamp, Timezone: parts[1]}, nil
}

// String renders the identity back into "name <email> timestamp timezone".
func (i Identity) String() string {
	return fmt.Sprintf("%s <%s> %d %s", i.Name, i.Email, i.Timestamp, i.Timezone)
}

// Time returns the time.Time represented by the identity's timestamp and
// timezone offset.
func (i Identity) Time() (time.Time, error) {
	if len(i.Timezone) != 5 {
		return time.Time{}, fmt.Errorf("%w: invalid timezone offset %q", ErrInvalidTimestamp, i.Timezone)
	}
	sign := i.Timezone[0]
	if sign != '+' && sign != '-' {
		return time.Time{}, fmt.Errorf("%w: invalid timezone sign %q", ErrInvalidTimestamp, string(sign))
	}
	hours, err := strconv.Atoi(i.Timezone[1:3])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidTimestamp, err)
	}
	minutes, err := strconv.Atoi(i.Timezone[3:5])
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidTimestamp, err)
	}
	seconds := hours*3600 + minutes*60
	if sign == '-' {
		seconds = -seconds
	}
	return time.Unix(i.Timestamp, 0).In(time.FixedZone("", seconds)), nil
}
