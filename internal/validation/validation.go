// Package validation проверяет тела запросов по явным таблицам полей.
//
// Поля, не объявленные в схеме, отклоняются. Все нарушения собираются
// за один проход, чтобы клиент получил полный список ошибок.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Правила, которые попадают в поле Violation.Rule.
const (
	RuleWhitelist = "whitelist"
	RuleRequired  = "required"
	RuleString    = "string"
	RuleMinLength = "minLength"
	RuleMaxLength = "maxLength"
	RuleEmail     = "email"
	RuleJSON      = "json"
)

var emailRe = regexp.MustCompile(`^\w+([.+-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,})+$`)

// Field описывает одно поле тела запроса.
type Field struct {
	Name     string
	Label    string
	Required bool
	Min      int
	Max      int
	Email    bool
	Trim     bool
}

// Schema — упорядоченный набор полей.
type Schema []Field

// Violation — одно нарушение правила.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Violations — список нарушений в порядке схемы.
type Violations []Violation

// ValidationError возвращается, если тело не прошло проверку.
type ValidationError struct {
	Violations Violations
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}

	return "Validation failed: " + strings.Join(msgs, "; ")
}

// Validate проверяет raw по schema. При отсутствии нарушений возвращает
// очищенные значения всех объявленных полей.
func Validate(raw map[string]any, schema Schema) (map[string]string, Violations) {
	var (
		out        = make(map[string]string, len(schema))
		violations Violations
		declared   = make(map[string]struct{}, len(schema))
	)

	for _, f := range schema {
		declared[f.Name] = struct{}{}

		val, v := checkField(raw, f)
		if v != nil {
			violations = append(violations, *v)
			continue
		}
		out[f.Name] = val
	}

	var unknown []string
	for k := range raw {
		if _, ok := declared[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)

	for _, k := range unknown {
		violations = append(violations, Violation{
			Field:   k,
			Rule:    RuleWhitelist,
			Message: fmt.Sprintf("property %s should not exist", k),
		})
	}

	if len(violations) > 0 {
		return nil, violations
	}

	return out, nil
}

func checkField(raw map[string]any, f Field) (string, *Violation) {
	fail := func(rule, msg string) (string, *Violation) {
		return "", &Violation{Field: f.Name, Rule: rule, Message: msg}
	}

	v, present := raw[f.Name]
	if !present || v == nil {
		if f.Required {
			return fail(RuleRequired, f.Label+" is required")
		}
		return "", nil
	}

	s, ok := v.(string)
	if !ok {
		return fail(RuleString, f.Label+" must be a string")
	}

	if f.Trim {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if f.Required {
			return fail(RuleRequired, f.Label+" is required")
		}
		return "", nil
	}

	n := utf8.RuneCountInString(s)
	if f.Min > 0 && n < f.Min {
		return fail(RuleMinLength, fmt.Sprintf("%s must be at least %d characters long", f.Label, f.Min))
	}
	if f.Max > 0 && n > f.Max {
		return fail(RuleMaxLength, fmt.Sprintf("%s cannot be more than %d characters", f.Label, f.Max))
	}

	if f.Email {
		if !emailRe.MatchString(s) {
			return fail(RuleEmail, "Please provide a valid email address")
		}
		s = strings.ToLower(s)
	}

	return s, nil
}

// DecodeObject разбирает тело как JSON-объект.
func DecodeObject(body []byte) (map[string]any, error) {
	var raw map[string]any

	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return nil, bodyError()
	}

	// Хвост после объекта.
	if dec.More() {
		return nil, bodyError()
	}

	return raw, nil
}

func bodyError() *ValidationError {
	return &ValidationError{Violations: Violations{{
		Field:   "body",
		Rule:    RuleJSON,
		Message: "Request body must be a JSON object",
	}}}
}

func decode(body []byte, schema Schema) (map[string]string, error) {
	raw, err := DecodeObject(body)
	if err != nil {
		return nil, err
	}

	out, violations := Validate(raw, schema)
	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	return out, nil
}
