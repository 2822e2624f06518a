// Package protocol implements the structured message layer of the wire
// protocol: JSON request/response/update envelopes on top of netstring
// framing, with two-phase validation (exact field-set shape, then
// per-action argument schemas) before anything reaches game logic.
//
// The protocol is stateless: the client sends its user identifier with
// every request instead of the server storing it with the connection.
// Every request is answered by exactly one response carrying the same
// key; updates are server-initiated and unacknowledged.
package protocol

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Status classifies the outcome of a request.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusInvalid  Status = "invalid"
	StatusIllegal  Status = "illegal"
	StatusInternal Status = "internal"
)

// Message is a decoded wire message: *Request, *Response, or *Update.
type Message interface {
	message()
}

// Request asks the server to perform an action on behalf of a user.
type Request struct {
	Key    uint64
	User   string
	Action string
	Data   map[string]any
}

// Response answers exactly one request, matched by key.
type Response struct {
	Key    uint64
	Status Status
	Data   map[string]any
}

// Update is a server-initiated message without a response.
type Update struct {
	Action string
	Data   map[string]any
}

func (*Request) message()  {}
func (*Response) message() {}
func (*Update) message()   {}

// Exact field-name sets for each envelope variant, sorted. A message with
// extra or missing keys is invalid even if the known fields parse.
var (
	requestKeys  = []string{"action", "data", "key", "type", "user"}
	responseKeys = []string{"data", "key", "status", "type"}
	updateKeys   = []string{"action", "data", "type"}
)

type requestWire struct {
	Type   string         `json:"type"`
	Key    uint64         `json:"key"`
	User   string         `json:"user"`
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
}

type responseWire struct {
	Type   string         `json:"type"`
	Key    uint64         `json:"key"`
	Status Status         `json:"status"`
	Data   map[string]any `json:"data"`
}

type updateWire struct {
	Type   string         `json:"type"`
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
}

func orEmpty(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return data
}

// EncodeRequest marshals a request envelope (unframed).
func EncodeRequest(r *Request) ([]byte, error) {
	return json.Marshal(requestWire{
		Type:   "request",
		Key:    r.Key,
		User:   r.User,
		Action: r.Action,
		Data:   orEmpty(r.Data),
	})
}

// EncodeResponse marshals a response envelope (unframed).
func EncodeResponse(r *Response) ([]byte, error) {
	return json.Marshal(responseWire{
		Type:   "response",
		Key:    r.Key,
		Status: r.Status,
		Data:   orEmpty(r.Data),
	})
}

// EncodeUpdate marshals an update envelope (unframed).
func EncodeUpdate(u *Update) ([]byte, error) {
	return json.Marshal(updateWire{
		Type:   "update",
		Action: u.Action,
		Data:   orEmpty(u.Data),
	})
}

// ValidateKeys fails unless the message's field-name set exactly equals
// expected (which must be sorted). Set equality, not superset/subset.
func ValidateKeys(fields map[string]any, expected []string) error {
	got := make([]string, 0, len(fields))
	for k := range fields {
		got = append(got, k)
	}
	sort.Strings(got)

	if len(got) != len(expected) {
		return Invalidf("message keys [%s], want [%s]",
			strings.Join(got, " "), strings.Join(expected, " "))
	}
	for i := range got {
		if got[i] != expected[i] {
			return Invalidf("message keys [%s], want [%s]",
				strings.Join(got, " "), strings.Join(expected, " "))
		}
	}
	return nil
}

// DecodeMessage parses one unframed JSON payload into a typed message,
// enforcing the exact field set for its variant. Numbers inside data
// decode as json.Number so integer fields survive intact.
func DecodeMessage(raw []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, Invalidf("malformed JSON: %v", err)
	}

	msgType, _ := fields["type"].(string)
	switch msgType {
	case "request":
		if err := ValidateKeys(fields, requestKeys); err != nil {
			return nil, err
		}
		key, err := numberField(fields, "key")
		if err != nil {
			return nil, err
		}
		user, err := stringEnvelopeField(fields, "user")
		if err != nil {
			return nil, err
		}
		action, err := stringEnvelopeField(fields, "action")
		if err != nil {
			return nil, err
		}
		data, err := dataField(fields)
		if err != nil {
			return nil, err
		}
		return &Request{Key: key, User: user, Action: action, Data: data}, nil

	case "response":
		if err := ValidateKeys(fields, responseKeys); err != nil {
			return nil, err
		}
		key, err := numberField(fields, "key")
		if err != nil {
			return nil, err
		}
		status, err := stringEnvelopeField(fields, "status")
		if err != nil {
			return nil, err
		}
		switch Status(status) {
		case StatusSuccess, StatusInvalid, StatusIllegal, StatusInternal:
		default:
			return nil, Invalidf("unknown response status %q", status)
		}
		data, err := dataField(fields)
		if err != nil {
			return nil, err
		}
		return &Response{Key: key, Status: Status(status), Data: data}, nil

	case "update":
		if err := ValidateKeys(fields, updateKeys); err != nil {
			return nil, err
		}
		action, err := stringEnvelopeField(fields, "action")
		if err != nil {
			return nil, err
		}
		data, err := dataField(fields)
		if err != nil {
			return nil, err
		}
		return &Update{Action: action, Data: data}, nil

	default:
		return nil, Invalidf("unknown message type %q", msgType)
	}
}

func numberField(fields map[string]any, name string) (uint64, error) {
	n, ok := fields[name].(json.Number)
	if !ok {
		return 0, Invalidf("field %q must be a number", name)
	}
	v, err := n.Int64()
	if err != nil || v < 0 {
		return 0, Invalidf("field %q must be a non-negative integer", name)
	}
	return uint64(v), nil
}

func stringEnvelopeField(fields map[string]any, name string) (string, error) {
	s, ok := fields[name].(string)
	if !ok {
		return "", Invalidf("field %q must be a string", name)
	}
	return s, nil
}

func dataField(fields map[string]any) (map[string]any, error) {
	d, ok := fields["data"].(map[string]any)
	if !ok {
		return nil, Invalidf(`field "data" must be an object`)
	}
	return d, nil
}
