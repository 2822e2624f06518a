package protocol

import (
	"encoding/json"
	"math"
)

// Direction is the movement intent carried by the move action.
type Direction string

const (
	North Direction = "north"
	East  Direction = "east"
	South Direction = "south"
	West  Direction = "west"
	Stop  Direction = "stop"
)

// ParseDirection validates a wire direction value.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case North, East, South, West, Stop:
		return Direction(s), nil
	default:
		return "", Invalidf("unknown direction %q", s)
	}
}

// Field describes one named argument of an action. Optional fields model
// arguments with defaults; the default itself lives in the handler.
type Field struct {
	Required bool
	Check    func(value any) error
}

// Action is the argument schema for one named operation.
type Action struct {
	Fields map[string]Field
}

// Registry maps action names to their argument schemas. It is built once
// at startup and consulted identically by the server (validating inbound
// requests) and by the client (validating inbound updates).
type Registry map[string]Action

// Validate fails with an InvalidError if the action is unknown, if data
// carries an argument the schema does not declare, if a required argument
// is missing, or if any present argument fails its type/domain check.
func (r Registry) Validate(action string, data map[string]any) error {
	schema, ok := r[action]
	if !ok {
		return Invalidf("unknown action %q", action)
	}
	for name := range data {
		if _, ok := schema.Fields[name]; !ok {
			return Invalidf("action %q does not take argument %q", action, name)
		}
	}
	for name, field := range schema.Fields {
		value, ok := data[name]
		if !ok {
			if field.Required {
				return Invalidf("action %q requires argument %q", action, name)
			}
			continue
		}
		if err := field.Check(value); err != nil {
			return Invalidf("action %q argument %q: %v", action, name, err)
		}
	}
	return nil
}

// Actions returns the registry for this protocol version:
//
//	move      {direction}    request: set the user's movement intent
//	logout    {}             request: destroy the sprite, forget the user
//	get_map   {}             request: fetch the floor layer of the map
//	echo      {foo?}         request: returns its data unchanged
//	position  {x,y,entity}   update: an entity occupies a new cell
func Actions() Registry {
	return Registry{
		"move": {Fields: map[string]Field{
			"direction": {Required: true, Check: checkDirection},
		}},
		"logout":  {Fields: map[string]Field{}},
		"get_map": {Fields: map[string]Field{}},
		"echo": {Fields: map[string]Field{
			"foo": {Check: checkString},
		}},
		"position": {Fields: map[string]Field{
			"x":      {Required: true, Check: checkInt},
			"y":      {Required: true, Check: checkInt},
			"entity": {Required: true, Check: checkString},
		}},
	}
}

func checkString(value any) error {
	if _, ok := value.(string); !ok {
		return Invalidf("must be a string")
	}
	return nil
}

func checkDirection(value any) error {
	s, ok := value.(string)
	if !ok {
		return Invalidf("must be a string")
	}
	if _, err := ParseDirection(s); err != nil {
		return Invalidf("must be one of north, east, south, west, stop")
	}
	return nil
}

// checkInt accepts decoded wire numbers (json.Number) as well as the Go
// integer kinds handlers put into update data before encoding.
func checkInt(value any) error {
	switch v := value.(type) {
	case json.Number:
		if _, err := v.Int64(); err != nil {
			return Invalidf("must be an integer")
		}
		return nil
	case int, int64:
		return nil
	case float64:
		if v != math.Trunc(v) {
			return Invalidf("must be an integer")
		}
		return nil
	default:
		return Invalidf("must be an integer")
	}
}

// IntArg extracts an integer argument from validated action data.
func IntArg(data map[string]any, name string) (int, bool) {
	switch v := data[name].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// StringArg extracts a string argument from validated action data,
// falling back to def when absent.
func StringArg(data map[string]any, name, def string) string {
	if s, ok := data[name].(string); ok {
		return s
	}
	return def
}
