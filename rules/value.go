package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ValueKind tags which variant a ConditionValue holds
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueString
	ValueNumber
	ValueList
)

// ConditionValue holds exactly one of a string, a number or a list of strings.
// The shape in use depends on the condition's operator.
type ConditionValue struct {
	kind ValueKind
	str  string
	num  float64
	list []string
}

// StringValue builds a string condition value
func StringValue(s string) ConditionValue {
	return ConditionValue{kind: ValueString, str: s}
}

// NumberValue builds a numeric condition value
func NumberValue(n float64) ConditionValue {
	return ConditionValue{kind: ValueNumber, num: n}
}

// ListValue builds a list-of-strings condition value
func ListValue(items ...string) ConditionValue {
	return ConditionValue{kind: ValueList, list: append([]string(nil), items...)}
}

// Kind returns the active variant
func (v ConditionValue) Kind() ValueKind {
	return v.kind
}

// String returns the string form of the value. Numbers are formatted, lists are empty.
func (v ConditionValue) String() string {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return ""
}

// Number returns the numeric form. String values are parsed.
func (v ConditionValue) Number() (float64, bool) {
	switch v.kind {
	case ValueNumber:
		return v.num, true
	case ValueString:
		return ParseDecimal(v.str)
	}
	return 0, false
}

// Amount returns the numeric form as an exact decimal, for money comparisons.
// NaN and infinities have no decimal form and report false.
func (v ConditionValue) Amount() (decimal.Decimal, bool) {
	switch v.kind {
	case ValueNumber:
		if !v.finite() {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v.num), true
	case ValueString:
		return ParseAmount(v.str)
	}
	return decimal.Zero, false
}

func (v ConditionValue) finite() bool {
	return !math.IsNaN(v.num) && !math.IsInf(v.num, 0)
}

// List returns the list form. A lone string is treated as a one-element list.
func (v ConditionValue) List() []string {
	switch v.kind {
	case ValueList:
		return v.list
	case ValueString:
		return []string{v.str}
	}
	return nil
}

// Clone returns a copy that shares no backing storage
func (v ConditionValue) Clone() ConditionValue {
	if v.list != nil {
		v.list = append([]string(nil), v.list...)
	}
	return v
}

// MarshalJSON encodes the active variant as a JSON string, number or array
func (v ConditionValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueString:
		return json.Marshal(v.str)
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueList:
		return json.Marshal(v.list)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a JSON string, number, array of strings or null
func (v *ConditionValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ConditionValue{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case '[':
		var items []string
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("condition value list must contain strings: %w", err)
		}
		*v = ListValue(items...)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("condition value must be a string, number or list: %w", err)
		}
		*v = NumberValue(n)
	}
	return nil
}

// MarshalYAML encodes the active variant for yaml.v3
func (v ConditionValue) MarshalYAML() (any, error) {
	switch v.kind {
	case ValueString:
		return v.str, nil
	case ValueNumber:
		return v.num, nil
	case ValueList:
		return v.list, nil
	}
	return nil, nil
}

// UnmarshalYAML decodes a scalar or a sequence of scalars.
// Unquoted numeric scalars become numbers, everything else a string.
func (v *ConditionValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*v = ConditionValue{}
			return nil
		}
		if node.Tag == "!!int" || node.Tag == "!!float" {
			n, err := strconv.ParseFloat(node.Value, 64)
			if err != nil {
				return fmt.Errorf("line %d: invalid number %q", node.Line, node.Value)
			}
			*v = NumberValue(n)
			return nil
		}
		*v = StringValue(node.Value)
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: condition value list must contain scalars", item.Line)
			}
			items = append(items, item.Value)
		}
		*v = ListValue(items...)
		return nil
	}
	return fmt.Errorf("line %d: condition value must be a scalar or a list", node.Line)
}
