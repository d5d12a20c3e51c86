package cache

import (
	"encoding/json"
)

// Serializer serialization interface
type Serializer interface {
	// Serialize object to byte array
	Serialize(v any) ([]byte, error)

	// Deserialize byte array to object
	Deserialize(data []byte, v any) error

	// Name Return serializer name
	Name() string
}

// JSONSerializer JSON serializer
type JSONSerializer struct{}

var _ Serializer = (*JSONSerializer)(nil)

// NewJSONSerializer Create JSON serializer
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// Serialize object to JSON
func (s *JSONSerializer) Serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Deserialize JSON to object
func (s *JSONSerializer) Deserialize(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// Name Returns the serializer name
func (s *JSONSerializer) Name() string {
	return "json"
}
