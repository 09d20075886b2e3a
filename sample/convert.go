package sample

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ohler55/ojg/jp"

	"github.com/c360/datahub/errors"
)

// ConvertToJSON renders a sample as its DataType's JSON-text representation,
// grounded on the original dataHub's ConvertToJson:
//
//   - Trigger  -> "null"
//   - Boolean  -> "true" / "false"
//   - Numeric  -> decimal formatting
//   - String   -> a quoted JSON string, escaped per RFC 8259 (the original's
//     verbatim-copy behavior was a likely bug; this implementation escapes
//     properly instead)
//   - JSON     -> copied verbatim, since it is already a JSON document/fragment
//
// maxBytes, if greater than zero, bounds the encoded result; exceeding it
// returns a *errors.HubError with Kind errors.KindOverflow, mirroring the
// original's fixed destination buffer.
func ConvertToJSON(s *Sample, dt DataType, maxBytes int) (string, error) {
	var out string

	switch dt {
	case Trigger:
		out = "null"
	case Boolean:
		v, _ := s.BoolValue()
		out = strconv.FormatBool(v)
	case Numeric:
		v, _ := s.NumericValue()
		out = strconv.FormatFloat(v, 'f', -1, 64)
	case String:
		v, _ := s.StringValue()
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", errors.WrapFatal(err, "sample", "ConvertToJSON", "escape string sample")
		}
		out = string(encoded)
	case JSON:
		v, _ := s.StringValue()
		out = v
	default:
		return "", errors.Newf(errors.KindBadParameter, "unknown data type %v", dt)
	}

	if maxBytes > 0 && len(out) > maxBytes {
		return "", errors.Newf(errors.KindOverflow,
			"converted value is %d bytes, exceeds buffer of %d", len(out), maxBytes)
	}
	return out, nil
}

// ConvertFromJSON parses a JSON-text representation back into a sample of
// the given data type, inheriting ts as its timestamp. It is the inverse of
// ConvertToJSON.
func ConvertFromJSON(p *Pool, text string, dt DataType, ts float64) (*Sample, error) {
	switch dt {
	case Trigger:
		return p.CreateTrigger(ts)
	case Boolean:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return nil, errors.WrapInvalid(err, "sample", "ConvertFromJSON", "parse boolean")
		}
		return p.CreateBool(ts, v)
	case Numeric:
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, errors.WrapInvalid(err, "sample", "ConvertFromJSON", "parse numeric")
		}
		return p.CreateNumeric(ts, v)
	case String:
		var v string
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, errors.WrapInvalid(err, "sample", "ConvertFromJSON", "unescape string")
		}
		return p.CreateString(ts, v)
	case JSON:
		return p.CreateJSON(ts, text)
	default:
		return nil, errors.Newf(errors.KindBadParameter, "unknown data type %v", dt)
	}
}

// ExtractJSON runs a JSONPath expression against a JSON-holding sample's
// text and constructs a new sample of the appropriate resulting data type,
// inheriting the source sample's timestamp — grounded on the original
// dataHub's ExtractJson / json_Extract primitive, implemented here with
// github.com/ohler55/ojg/jp rather than a hand-rolled JSON-path walker.
func ExtractJSON(p *Pool, src *Sample, path string) (*Sample, DataType, error) {
	raw, ok := src.StringValue()
	if !ok {
		return nil, Trigger, errors.New(errors.KindBadParameter,
			fmt.Errorf("ExtractJSON: source sample has no string/json payload"))
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, Trigger, errors.WrapInvalid(err, "sample", "ExtractJSON", "parse source JSON")
	}

	expr, err := jp.ParseString(path)
	if err != nil {
		return nil, Trigger, errors.WrapInvalid(err, "sample", "ExtractJSON",
			fmt.Sprintf("invalid JSONPath %q", path))
	}

	matches := expr.Get(doc)
	if len(matches) == 0 {
		return nil, Trigger, errors.Newf(errors.KindNotFound, "ExtractJSON: no match for path %q", path)
	}

	ts := src.Timestamp()
	switch v := matches[0].(type) {
	case bool:
		out, err := p.CreateBool(ts, v)
		return out, Boolean, err
	case float64:
		out, err := p.CreateNumeric(ts, v)
		return out, Numeric, err
	case string:
		out, err := p.CreateString(ts, v)
		return out, String, err
	case nil:
		out, err := p.CreateTrigger(ts)
		return out, Trigger, err
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, Trigger, errors.WrapFatal(err, "sample", "ExtractJSON", "re-encode extracted value")
		}
		out, err := p.CreateJSON(ts, string(encoded))
		return out, JSON, err
	}
}
