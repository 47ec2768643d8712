package scrapql

import (
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cyberixae/scrapql/internal/ctxpath"
	"github.com/cyberixae/scrapql/internal/dict"
	"github.com/cyberixae/scrapql/internal/jsonv"
	"github.com/cyberixae/scrapql/internal/maybe"
)

// Wire format
//
// Dicts travel as arrays of [key, value] pairs so that their order survives.
// Options travel as {"_tag": "None"} or {"_tag": "Some", "value": v}.
// Properties travel as objects holding the present properties only.

const (
	tagKey   = "_tag"
	tagNone  = "None"
	tagSome  = "Some"
	valueKey = "value"
)

// DecodeQuery parses a JSON query of p.
func (p *Protocol[QA, RA]) DecodeQuery(data []byte) (any, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, &PathError{Op: "decode", Path: []string{}, Err: err}
	}
	return p.queryFromWire(v, ctxpath.Zero)
}

// DecodeResult parses a JSON result of p.
func (p *Protocol[QA, RA]) DecodeResult(data []byte) (any, error) {
	v, err := parseJSON(data)
	if err != nil {
		return nil, &PathError{Op: "decode", Path: []string{}, Err: err}
	}
	return p.resultFromWire(v, ctxpath.Zero)
}

// EncodeQuery renders a query of p as JSON.
func (p *Protocol[QA, RA]) EncodeQuery(query any) ([]byte, error) {
	w, err := p.toWire(query, false, ctxpath.Zero)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// EncodeResult renders a result of p as JSON.
func (p *Protocol[QA, RA]) EncodeResult(result any) ([]byte, error) {
	w, err := p.toWire(result, true, ctxpath.Zero)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// EncodeErr renders a handler error as JSON using the error encoder of p or,
// for containers without one, of their first descendant that has one.
func (p *Protocol[QA, RA]) EncodeErr(err error) ([]byte, error) {
	var v any = err.Error()
	if enc := p.errEncoder(); enc != nil {
		v = enc(err)
	}
	w, cerr := jsonv.Canonical(v)
	if cerr != nil {
		return nil, cerr
	}
	return json.Marshal(w)
}

func (p *Protocol[QA, RA]) errEncoder() func(error) any {
	if p.opts.errEncoder != nil {
		return p.opts.errEncoder
	}
	if p.child != nil {
		return p.child.errEncoder()
	}
	for _, pr := range p.props {
		if enc := pr.Protocol.errEncoder(); enc != nil {
			return enc
		}
	}
	return nil
}

func parseJSON(data []byte) (any, error) {
	var v structpb.Value
	if err := protojson.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v.AsInterface(), nil
}

func decodeFailure(path ctxpath.Path, format string, args ...any) error {
	return &PathError{Op: "decode", Path: path.Segments(), Err: fmt.Errorf(format, args...)}
}

func (p *Protocol[QA, RA]) queryFromWire(v any, path ctxpath.Path) (any, error) {
	switch p.kind {
	case KindLiteral:
		if !jsonv.Equal(v, p.query) {
			return nil, &PathError{Op: "decode", Path: path.Segments(), Err: ErrLiteralMismatch}
		}
		return p.query, nil
	case KindLeaf:
		return p.leafFromWire(v, p.opts.queryCodec, path)
	case KindKeys, KindIds:
		return dictFromWire(v, path, p.child.queryFromWire)
	case KindProperties:
		return p.propertiesFromWire(v, path, func(child *Protocol[QA, RA], v any, path ctxpath.Path) (any, error) {
			return child.queryFromWire(v, path)
		})
	}
	return nil, decodeFailure(path, "invalid shape %d", p.kind)
}

func (p *Protocol[QA, RA]) resultFromWire(v any, path ctxpath.Path) (any, error) {
	switch p.kind {
	case KindLiteral:
		if !jsonv.Equal(v, p.result) {
			return nil, &PathError{Op: "decode", Path: path.Segments(), Err: ErrLiteralMismatch}
		}
		return p.result, nil
	case KindLeaf:
		return p.leafFromWire(v, p.opts.resultCodec, path)
	case KindKeys:
		return dictFromWire(v, path, p.child.resultFromWire)
	case KindIds:
		return dictFromWire(v, path, func(v any, path ctxpath.Path) (maybe.Option[any], error) {
			return optionFromWire(v, path, p.child.resultFromWire)
		})
	case KindProperties:
		return p.propertiesFromWire(v, path, func(child *Protocol[QA, RA], v any, path ctxpath.Path) (any, error) {
			return child.resultFromWire(v, path)
		})
	}
	return nil, decodeFailure(path, "invalid shape %d", p.kind)
}

func (p *Protocol[QA, RA]) leafFromWire(v any, codec func(any) (any, error), path ctxpath.Path) (any, error) {
	if codec == nil {
		return v, nil
	}
	out, err := codec(v)
	if err != nil {
		return nil, &PathError{Op: "decode", Path: path.Segments(), Err: err}
	}
	return out, nil
}

func dictFromWire[V any](v any, path ctxpath.Path, sub func(any, ctxpath.Path) (V, error)) (dict.Dict[string, V], error) {
	pairs, ok := v.([]any)
	if !ok {
		return nil, decodeFailure(path, "want array of [key, value] pairs, got %T", v)
	}
	out := make(dict.Dict[string, V], 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	for i, raw := range pairs {
		pair, ok := raw.([]any)
		if !ok || len(pair) != 2 {
			return nil, decodeFailure(path, "entry %d: want [key, value] pair", i)
		}
		key, ok := pair[0].(string)
		if !ok {
			return nil, decodeFailure(path, "entry %d: want string key, got %T", i, pair[0])
		}
		if seen[key] {
			return nil, decodeFailure(path, "entry %d: duplicate key %q", i, key)
		}
		seen[key] = true
		val, err := sub(pair[1], path.Prepend(key))
		if err != nil {
			return nil, err
		}
		out = append(out, dict.Pair(key, val))
	}
	return out, nil
}

func optionFromWire(v any, path ctxpath.Path, sub func(any, ctxpath.Path) (any, error)) (maybe.Option[any], error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return maybe.None[any](), decodeFailure(path, "want option object, got %T", v)
	}
	switch obj[tagKey] {
	case tagNone:
		return maybe.None[any](), nil
	case tagSome:
		raw, ok := obj[valueKey]
		if !ok {
			return maybe.None[any](), decodeFailure(path, "option Some without value")
		}
		val, err := sub(raw, path)
		if err != nil {
			return maybe.None[any](), err
		}
		return maybe.Some(val), nil
	default:
		return maybe.None[any](), decodeFailure(path, "invalid option tag %v", obj[tagKey])
	}
}

func (p *Protocol[QA, RA]) propertiesFromWire(v any, path ctxpath.Path, sub func(*Protocol[QA, RA], any, ctxpath.Path) (any, error)) (any, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, decodeFailure(path, "want object, got %T", v)
	}
	out := make(map[string]any, len(obj))
	for name, raw := range obj {
		child, ok := p.prop(name)
		if !ok {
			return nil, &PathError{Op: "decode", Path: path.Segments(), Err: fmt.Errorf("%w %q", ErrUnknownProperty, name)}
		}
		val, err := sub(child, raw, path)
		if err != nil {
			return nil, err
		}
		out[name] = val
	}
	return out, nil
}

// toWire converts a Go query or result of p into a plain JSON value tree.
func (p *Protocol[QA, RA]) toWire(v any, isResult bool, path ctxpath.Path) (any, error) {
	fail := func(err error) error { return &PathError{Op: "encode", Path: path.Segments(), Err: err} }
	switch p.kind {
	case KindLiteral, KindLeaf:
		w, err := jsonv.Canonical(v)
		if err != nil {
			return nil, fail(err)
		}
		return w, nil
	case KindKeys:
		d, ok := v.(dict.Dict[string, any])
		if !ok {
			return nil, fail(&TypeError{Shape: p.kind, Want: "dict.Dict[string, any]", Got: v})
		}
		return dictToWire(d, path, func(sub any, path ctxpath.Path) (any, error) {
			return p.child.toWire(sub, isResult, path)
		})
	case KindIds:
		if !isResult {
			d, ok := v.(dict.Dict[string, any])
			if !ok {
				return nil, fail(&TypeError{Shape: p.kind, Want: "dict.Dict[string, any]", Got: v})
			}
			return dictToWire(d, path, func(sub any, path ctxpath.Path) (any, error) {
				return p.child.toWire(sub, false, path)
			})
		}
		d, ok := v.(dict.Dict[string, maybe.Option[any]])
		if !ok {
			return nil, fail(&TypeError{Shape: p.kind, Want: "dict.Dict[string, maybe.Option[any]]", Got: v})
		}
		return dictToWire(d, path, func(sub maybe.Option[any], path ctxpath.Path) (any, error) {
			val, ok := sub.Get()
			if !ok {
				return map[string]any{tagKey: tagNone}, nil
			}
			w, err := p.child.toWire(val, true, path)
			if err != nil {
				return nil, err
			}
			return map[string]any{tagKey: tagSome, valueKey: w}, nil
		})
	case KindProperties:
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fail(&TypeError{Shape: p.kind, Want: "map[string]any", Got: v})
		}
		out := make(map[string]any, len(m))
		for name, sub := range m {
			child, ok := p.prop(name)
			if !ok {
				return nil, fail(fmt.Errorf("%w %q", ErrUnknownProperty, name))
			}
			w, err := child.toWire(sub, isResult, path)
			if err != nil {
				return nil, err
			}
			out[name] = w
		}
		return out, nil
	}
	return nil, fail(errors.New("invalid shape"))
}

func dictToWire[V any](d dict.Dict[string, V], path ctxpath.Path, sub func(V, ctxpath.Path) (any, error)) (any, error) {
	out := make([]any, 0, len(d))
	for _, e := range d {
		w, err := sub(e.Value, path.Prepend(e.Key))
		if err != nil {
			return nil, err
		}
		out = append(out, []any{e.Key, w})
	}
	return out, nil
}
