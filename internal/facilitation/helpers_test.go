package facilitation_test

import (
	"encoding/json"
	"errors"
)

var errTest = errors.New("capability unavailable")

func unmarshal(data []byte, target any) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(data, target)
}
