// Package grammar decodes concise player inputs.
//
// An input is a JSON array whose first element is the action tag, for example
// ["checkSafe",2] or ["setName","alice"]. Every action has a JSON schema; inputs
// that do not match it are rejected before they reach the rules engine.
package grammar

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/safe-solver/internal/types"
)

var (
	// ErrMalformed is returned for inputs that are not a JSON array led by a string tag
	ErrMalformed = errors.New("malformed input")
	// ErrUnknownAction is returned for a well-formed input with an unrecognized tag
	ErrUnknownAction = errors.New("unknown action")
	// ErrSchema is returned when the arguments do not match the action's schema
	ErrSchema = errors.New("input does not match schema")
)

// Payload is the typed argument set of one action
type Payload interface {
	Action() types.Action
}

// SetName renames the signer's account
type SetName struct {
	Name string
}

// Delegate publishes the signer's account under another address
type Delegate struct {
	DelegateToAddress string
}

// InitLevel starts a game
type InitLevel struct{}

// CheckSafe opens the safe at SafeIndex
type CheckSafe struct {
	SafeIndex int
}

// SubmitScore cashes out for AccountID
type SubmitScore struct {
	AccountID int64
}

// CreateAccount links the signer address to a new account
type CreateAccount struct{}

func (SetName) Action() types.Action       { return types.ActionSetName }
func (Delegate) Action() types.Action      { return types.ActionDelegate }
func (InitLevel) Action() types.Action     { return types.ActionInitLevel }
func (CheckSafe) Action() types.Action     { return types.ActionCheckSafe }
func (SubmitScore) Action() types.Action   { return types.ActionSubmitScore }
func (CreateAccount) Action() types.Action { return types.ActionCreateAccount }

const schemaHeader = `"$schema": "http://json-schema.org/draft-07/schema#", "type": "array", "additionalItems": false`

var schemaSources = map[types.Action]string{
	types.ActionSetName: `{` + schemaHeader + `, "minItems": 2, "maxItems": 2,
		"items": [{"const": "setName"}, {"type": "string"}]}`,
	types.ActionDelegate: `{` + schemaHeader + `, "minItems": 2, "maxItems": 2,
		"items": [{"const": "delegate"}, {"type": "string"}]}`,
	types.ActionInitLevel: `{` + schemaHeader + `, "minItems": 1, "maxItems": 1,
		"items": [{"const": "initLevel"}]}`,
	types.ActionCheckSafe: `{` + schemaHeader + `, "minItems": 2, "maxItems": 2,
		"items": [{"const": "checkSafe"}, {"type": "integer"}]}`,
	types.ActionSubmitScore: `{` + schemaHeader + `, "minItems": 2, "maxItems": 2,
		"items": [{"const": "submitScore"}, {"type": "integer"}]}`,
	types.ActionCreateAccount: `{` + schemaHeader + `, "minItems": 1, "maxItems": 1,
		"items": [{"const": "createAccount"}]}`,
}

var schemas = mustCompile(schemaSources)

func mustCompile(sources map[types.Action]string) map[types.Action]*gojsonschema.Schema {
	out := make(map[types.Action]*gojsonschema.Schema, len(sources))
	for action, src := range sources {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			panic(fmt.Sprintf("grammar: schema for %s: %v", action, err))
		}
		out[action] = s
	}
	return out
}

// Tag extracts the action tag without validating the arguments
func Tag(input string) (types.Action, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(input), &parts); err != nil || len(parts) == 0 {
		return "", ErrMalformed
	}
	var tag string
	if err := json.Unmarshal(parts[0], &tag); err != nil {
		return "", ErrMalformed
	}
	return types.Action(tag), nil
}

// Parse validates input against its action's schema and returns the typed payload.
// The returned action is set whenever the tag could be read, even on error.
func Parse(input string) (types.Action, Payload, error) {
	action, err := Tag(input)
	if err != nil {
		return "", nil, err
	}

	schema, ok := schemas[action]
	if !ok {
		return action, nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	res, err := schema.Validate(gojsonschema.NewStringLoader(input))
	if err != nil {
		return action, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !res.Valid() {
		var msgs []string
		for i, e := range res.Errors() {
			if i >= 3 {
				break
			}
			msgs = append(msgs, e.String())
		}
		return action, nil, fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
	}

	args, err := decodeArgs(input)
	if err != nil {
		return action, nil, err
	}

	switch action {
	case types.ActionSetName:
		name, err := textArg(args[1])
		if err != nil {
			return action, nil, err
		}
		return action, SetName{Name: name}, nil
	case types.ActionDelegate:
		addr, err := textArg(args[1])
		if err != nil {
			return action, nil, err
		}
		return action, Delegate{DelegateToAddress: addr}, nil
	case types.ActionInitLevel:
		return action, InitLevel{}, nil
	case types.ActionCheckSafe:
		n, err := intArg(args[1], math.MinInt32, math.MaxInt32)
		if err != nil {
			return action, nil, err
		}
		return action, CheckSafe{SafeIndex: int(n)}, nil
	case types.ActionSubmitScore:
		n, err := intArg(args[1], math.MinInt64, math.MaxInt64)
		if err != nil {
			return action, nil, err
		}
		return action, SubmitScore{AccountID: n}, nil
	case types.ActionCreateAccount:
		return action, CreateAccount{}, nil
	}
	return action, nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

func decodeArgs(input string) ([]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(input))
	dec.UseNumber()
	var args []interface{}
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return args, nil
}

// textArg rejects strings that cannot be persisted
func textArg(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected a string", ErrSchema)
	}
	if !types.IsStorableText(s) {
		return "", fmt.Errorf("%w: string contains NUL or invalid UTF-8", ErrSchema)
	}
	return s, nil
}

func intArg(v interface{}, lo, hi int64) (int64, error) {
	num, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: expected an integer", ErrSchema)
	}
	n, err := num.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %d out of range", ErrSchema, n)
	}
	return n, nil
}

// Encode renders a payload in concise form
func Encode(p Payload) string {
	var parts []interface{}
	switch v := p.(type) {
	case SetName:
		parts = []interface{}{v.Action(), v.Name}
	case Delegate:
		parts = []interface{}{v.Action(), v.DelegateToAddress}
	case CheckSafe:
		parts = []interface{}{v.Action(), v.SafeIndex}
	case SubmitScore:
		parts = []interface{}{v.Action(), v.AccountID}
	default:
		parts = []interface{}{p.Action()}
	}
	b, _ := json.Marshal(parts)
	return string(b)
}
