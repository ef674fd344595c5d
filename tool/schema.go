package tool

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"

	"github.com/xiaoyuanxun/anda-sub000/errs"
	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// generateSchema reflects a JSON schema for In, grounded on hector's
// pkg/tool/functiontool schema generator: struct tags become required
// fields, the struct is expanded inline rather than $ref'd, and the
// envelope keys a bare LLM tool-calling consumer doesn't need are dropped.
func generateSchema[In any]() (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	schema := reflector.Reflect(new(In))
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, errs.Internal("tool.generateSchema", "marshaling schema", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errs.Internal("tool.generateSchema", "round-tripping schema", err)
	}
	delete(m, "$schema")
	delete(m, "$id")
	out, err := json.Marshal(m)
	if err != nil {
		return nil, errs.Internal("tool.generateSchema", "re-marshaling schema", err)
	}
	return out, nil
}

// Func is a typed tool body: it receives already-decoded arguments and
// returns a typed result plus any artifact resources it produced.
type Func[In any, Out any] func(ctx *ectx.BaseCtx, args In, resources []types.Resource) (Out, []types.Resource, error)

// TypedTool adapts a Go function with a concrete argument/result type into
// the Tool interface, generating its JSON schema once at construction and
// decoding incoming args with mapstructure for the same loose-to-strict
// coercion hector's functiontool wrapper relies on (numeric widening,
// map-to-struct, etc).
type TypedTool[In any, Out any] struct {
	def  Definition
	fn   Func[In, Out]
}

// NewTypedTool builds a Tool from fn, reflecting In's JSON schema for the
// exported Definition.
func NewTypedTool[In any, Out any](name, description string, strict, acceptsResources bool, fn Func[In, Out]) (*TypedTool[In, Out], error) {
	schema, err := generateSchema[In]()
	if err != nil {
		return nil, err
	}
	return &TypedTool[In, Out]{
		def: Definition{
			Name:             name,
			Description:      description,
			ParametersJSON:   schema,
			Strict:           strict,
			AcceptsResources: acceptsResources,
		},
		fn: fn,
	}, nil
}

func (t *TypedTool[In, Out]) Definition() Definition { return t.def }

func (t *TypedTool[In, Out]) Call(ctx *ectx.BaseCtx, argsJSON []byte, resources []types.Resource) (json.RawMessage, []types.Resource, error) {
	var raw map[string]any
	if len(argsJSON) > 0 {
		if err := json.Unmarshal(argsJSON, &raw); err != nil {
			return nil, nil, errs.Validation(t.def.Name, "invalid args: "+err.Error(), nil)
		}
	}
	var args In
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &args,
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      false,
	})
	if err != nil {
		return nil, nil, errs.Internal(t.def.Name, "building arg decoder", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, nil, errs.Validation(t.def.Name, "invalid args: "+err.Error(), nil)
	}

	out, artifacts, err := t.fn(ctx, args, resources)
	if err != nil {
		return nil, nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, nil, errs.Internal(t.def.Name, "marshaling result", err)
	}
	return data, artifacts, nil
}
