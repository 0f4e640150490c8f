// Package opt provides an optional value type used for settings that have a harness-wide
// default but may be overridden per case or per probe.
package opt

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Maybe is a simple implementation of an optional value type.
type Maybe[V any] struct {
	defined bool
	value   V
}

// Some returns a Maybe that has a defined value.
func Some[V any](value V) Maybe[V] {
	return Maybe[V]{defined: true, value: value}
}

// None returns a Maybe with no value.
func None[V any]() Maybe[V] { return Maybe[V]{} }

// IsDefined returns true if the Maybe has a value.
func (m Maybe[V]) IsDefined() bool { return m.defined }

// Value returns the value if a value is defined, or the zero value for the type otherwise.
func (m Maybe[V]) Value() V { return m.value }

// OrElse returns the value of the Maybe if any, or valueIfUndefined otherwise.
func (m Maybe[V]) OrElse(valueIfUndefined V) V {
	if m.defined {
		return m.value
	}
	return valueIfUndefined
}

// String returns the value's own String() if it has one, the %v formatting otherwise, or
// "[none]" if undefined.
func (m Maybe[V]) String() string {
	if !m.defined {
		return "[none]"
	}
	if s, ok := any(m.value).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", m.value)
}

// IsZero lets yaml.v3 treat an undefined Maybe as empty for omitempty.
func (m Maybe[V]) IsZero() bool { return !m.defined }

// MarshalJSON produces the JSON representation of the value, or null if undefined.
func (m Maybe[V]) MarshalJSON() ([]byte, error) {
	if m.defined {
		return json.Marshal(m.value)
	}
	return []byte("null"), nil
}

// UnmarshalJSON sets the Maybe to None for a JSON null, or to Some(value) otherwise.
func (m *Maybe[V]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = None[V]()
		return nil
	}
	var value V
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*m = Some(value)
	return nil
}

// MarshalYAML produces the YAML representation of the value, or null if undefined.
func (m Maybe[V]) MarshalYAML() (interface{}, error) {
	if m.defined {
		return m.value, nil
	}
	return nil, nil
}

// UnmarshalYAML sets the Maybe to None for a YAML null, or decodes a V otherwise. The decode
// goes through V's own UnmarshalYAML if it has one.
func (m *Maybe[V]) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*m = None[V]()
		return nil
	}
	var value V
	if err := node.Decode(&value); err != nil {
		return err
	}
	*m = Some(value)
	return nil
}
