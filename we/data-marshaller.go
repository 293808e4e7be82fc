package we

import (
	"fmt"

	"github.com/goccy/go-json"
)

const JsonEncoding = "application/json"

type InvalidEncodingError struct {
	Expected string
	Actual   string
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("expected encoding %s, got %s", e.Expected, e.Actual)
}

func InvalidEncoding(expected string, actual string) error {
	return &InvalidEncodingError{
		Expected: expected,
		Actual:   actual,
	}
}

func MarshalToData(event any) (Data, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return Data{}, err
	}

	return Data{
		Encoding: JsonEncoding,
		Data:     data,
	}, nil
}

func UnmarshalFromData(data Data, value any) error {
	if data.Encoding != JsonEncoding {
		return InvalidEncoding(JsonEncoding, data.Encoding)
	}
	return json.Unmarshal(data.Data, value)
}
