package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Option is a question choice: either a label or an integer.
type Option struct {
	label    string
	number   int
	isNumber bool
}

func TextOption(label string) Option { return Option{label: label} }

func NumberOption(n int) Option { return Option{number: n, isNumber: true} }

func (o Option) IsNumber() bool { return o.isNumber }
func (o Option) Label() string { return o.label }
func (o Option) Number() int { return o.number }

func (o Option) String() string {
	if o.isNumber {
		return strconv.Itoa(o.number)
	}
	return o.label
}

func (o Option) MarshalJSON() ([]byte, error) {
	if o.isNumber {
		return json.Marshal(o.number)
	}
	return json.Marshal(o.label)
}

func (o *Option) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var label string
		if err := json.Unmarshal(data, &label); err != nil {
			return err
		}
		*o = TextOption(label)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("option must be a string or an integer: %s", data)
	}
	*o = NumberOption(n)
	return nil
}

// ValueKind is the shape of an answer value.
type ValueKind int

const (
	KindUnset ValueKind = iota
	KindText
	KindChoices
	KindNumber
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindChoices:
		return "choices"
	case KindNumber:
		return "number"
	default:
		return "unset"
	}
}

// AnswerValue holds exactly one of a text, a list of choices or an integer.
type AnswerValue struct {
	kind    ValueKind
	text    string
	choices []string
	number  int
}

func TextValue(s string) AnswerValue { return AnswerValue{kind: KindText, text: s} }

func ChoicesValue(choices ...string) AnswerValue {
	return AnswerValue{kind: KindChoices, choices: append([]string{}, choices...)}
}

func NumberValue(n int) AnswerValue { return AnswerValue{kind: KindNumber, number: n} }

func (v AnswerValue) Kind() ValueKind { return v.kind }
func (v AnswerValue) Text() string { return v.text }
func (v AnswerValue) Choices() []string { return append([]string(nil), v.choices...) }
func (v AnswerValue) Number() int { return v.number }
func (v AnswerValue) IsZero() bool { return v.kind == KindUnset }

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindChoices:
		if v.choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.choices)
	case KindNumber:
		return json.Marshal(v.number)
	default:
		return []byte("null"), nil
	}
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = AnswerValue{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = TextValue(s)
	case '[':
		var choices []string
		if err := json.Unmarshal(data, &choices); err != nil {
			return fmt.Errorf("answer list must contain strings: %w", err)
		}
		*v = ChoicesValue(choices...)
	default:
		var n int
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("answer must be a string, a list of strings or an integer: %s", data)
		}
		*v = NumberValue(n)
	}
	return nil
}
