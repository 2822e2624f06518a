package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// The payload structs model the JSON contract for action arguments. They
// are shared with the schema generator so we can produce a
// machine-readable document for client tooling and compatibility checks.

// MovePayload is the argument set of the move request.
type MovePayload struct {
	Direction string `json:"direction" jsonschema:"title=Movement direction,enum=north,enum=east,enum=south,enum=west,enum=stop"`
}

// LogoutPayload is the (empty) argument set of the logout request.
type LogoutPayload struct{}

// GetMapPayload is the (empty) argument set of the get_map request.
type GetMapPayload struct{}

// EchoPayload is the argument set of the echo request.
type EchoPayload struct {
	Foo string `json:"foo,omitempty" jsonschema:"title=Echoed value,description=Returned unchanged in the response data"`
}

// PositionPayload is the argument set of the position update.
type PositionPayload struct {
	X      int    `json:"x" jsonschema:"title=Column"`
	Y      int    `json:"y" jsonschema:"title=Row"`
	Entity string `json:"entity" jsonschema:"title=Sprite id,description=Formatted as kind:name"`
}

// Contract groups every action payload so a single schema document covers
// the whole protocol surface.
type Contract struct {
	Move     MovePayload     `json:"move"`
	Logout   LogoutPayload   `json:"logout"`
	GetMap   GetMapPayload   `json:"get_map"`
	Echo     EchoPayload     `json:"echo"`
	Position PositionPayload `json:"position"`
}

// ContractSchema reflects the protocol contract into a JSON schema.
func ContractSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(new(Contract))
	schema.Title = "Grid Depths Protocol Contract"
	schema.Description = "Argument schemas for every request and update action"
	return schema
}

// ContractHash is a stable digest of the contract schema. Server and
// client builds can compare it to detect protocol drift.
func ContractHash() (string, error) {
	encoded, err := json.Marshal(ContractSchema())
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
