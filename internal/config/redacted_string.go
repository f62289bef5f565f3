package config

import (
	"fmt"
	"strconv"
)

// RedactedString is a string that does not reveal its value when printed, logged or serialized
type RedactedString string

func (r RedactedString) redacted() string {
	return fmt.Sprintf("<redacted-%d-chars>", len(r))
}

func (r RedactedString) String() string {
	return r.redacted()
}

func (r RedactedString) GoString() string {
	return r.redacted()
}

func (r RedactedString) MarshalText() ([]byte, error) {
	return []byte(r.redacted()), nil
}

func (r RedactedString) MarshalBinary() ([]byte, error) {
	return []byte(r.redacted()), nil
}

func (r RedactedString) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(r.redacted())), nil
}
