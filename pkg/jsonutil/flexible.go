package jsonutil

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexibleIntValue converts a json.RawMessage to an int, accepting both
// numeric and quoted-numeric forms ("5" and 5). Returns 0 when the raw
// value is null, empty, or not a whole number.
func FlexibleIntValue(raw json.RawMessage) int {
	if len(raw) == 0 || string(raw) == "null" {
		return 0
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int(numVal)) {
			return int(numVal)
		}
		return 0
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(strVal)); err == nil {
			return n
		}
	}

	return 0
}
