package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Dependency is a graph node: one field of one component, keyed by its
// catalogue slot.
type Dependency struct {
	Component string       `json:"component"`
	Code      ReservedCode `json:"code"`
}

// String renders the dependency as "Component.field".
func (d Dependency) String() string {
	return d.Component + "." + d.Code.String()
}

// Dependent is the reading side of an edge. It is keyed by the raw
// instruction code so parametrized slots stay distinct.
type Dependent struct {
	Component string `json:"component"`
	Code      string `json:"code"`
}

// String renders the dependent as "Component.code".
func (d Dependent) String() string {
	return d.Component + "." + d.Code
}

// AsDependency converts the dependent into the dependency keyed by the same
// slot. It reports false for codes outside the catalogue.
func (d Dependent) AsDependency() (Dependency, bool) {
	rc, ok := ParseReservedCode(d.Code)
	if !ok {
		return Dependency{}, false
	}
	return Dependency{Component: d.Component, Code: rc}, true
}

// ParseDependency parses "Component.field". The component part is everything
// before the first dot.
func ParseDependency(s string) (Dependency, error) {
	comp, field, ok := strings.Cut(s, ".")
	if !ok || comp == "" || field == "" {
		return Dependency{}, fmt.Errorf("invalid dependency %q: expected Component.field", s)
	}
	rc, ok := ParseReservedCode(field)
	if !ok {
		return Dependency{}, fmt.Errorf("invalid dependency %q: unknown field %q", s, field)
	}
	return Dependency{Component: comp, Code: rc}, nil
}

// ParseDependent parses "Component.code" without checking the catalogue.
func ParseDependent(s string) (Dependent, error) {
	comp, code, ok := strings.Cut(s, ".")
	if !ok || comp == "" || code == "" {
		return Dependent{}, fmt.Errorf("invalid dependent %q: expected Component.code", s)
	}
	return Dependent{Component: comp, Code: code}, nil
}

// MarshalText lets Dependency be used as a JSON map key.
func (d Dependency) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a dependency map key.
func (d *Dependency) UnmarshalText(text []byte) error {
	parsed, err := ParseDependency(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalText lets Dependent be used as a JSON map key.
func (d Dependent) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a dependent map key.
func (d *Dependent) UnmarshalText(text []byte) error {
	parsed, err := ParseDependent(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// dependencyJSON keeps the struct encoding when Dependency appears as a value.
type dependencyJSON struct {
	Component string `json:"component"`
	Code      string `json:"code"`
}

// MarshalJSON encodes the dependency as an object.
func (d Dependency) MarshalJSON() ([]byte, error) {
	return json.Marshal(dependencyJSON{Component: d.Component, Code: d.Code.String()})
}

// UnmarshalJSON decodes the object form.
func (d *Dependency) UnmarshalJSON(data []byte) error {
	var aux dependencyJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	rc, ok := ParseReservedCode(aux.Code)
	if !ok {
		return fmt.Errorf("unknown reserved code %q", aux.Code)
	}
	*d = Dependency{Component: aux.Component, Code: rc}
	return nil
}
