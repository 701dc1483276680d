package documents

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dev-sgill/arbiter/api/model"
	pdpmodel "github.com/dev-sgill/arbiter/api/pdp/model"
)

// matchesTarget checks the subject, resource and action matchers of a
// definition against a subscription. An empty matcher list matches
// anything; within a list one matching entry is enough.
func matchesTarget(def model.PolicyDefinition, sub pdpmodel.AuthorizationSubscription) bool {
	if len(def.Subjects) > 0 && !anySubjectMatches(def.Subjects, sub.Subject) {
		return false
	}
	if len(def.Resources) > 0 && !anyResourceMatches(def.Resources, sub.Resource) {
		return false
	}
	if len(def.Actions) > 0 && !actionMatches(def.Actions, sub.Action) {
		return false
	}
	return true
}

func anySubjectMatches(matchers []model.SubjectMatcher, subject map[string]interface{}) bool {
	for _, m := range matchers {
		if subjectMatches(m, subject) {
			return true
		}
	}
	return false
}

func subjectMatches(m model.SubjectMatcher, subject map[string]interface{}) bool {
	if m.Type != "" && asString(subject["type"]) != m.Type {
		return false
	}
	if m.ID != "" && asString(subject["id"]) != m.ID {
		return false
	}
	return attributesMatch(m.Attributes, subject)
}

func anyResourceMatches(matchers []model.ResourceMatcher, resource map[string]interface{}) bool {
	for _, m := range matchers {
		if resourceMatches(m, resource) {
			return true
		}
	}
	return false
}

func resourceMatches(m model.ResourceMatcher, resource map[string]interface{}) bool {
	if m.Type != "" && asString(resource["type"]) != m.Type {
		return false
	}
	return attributesMatch(m.Attributes, resource)
}

func attributesMatch(want map[string]string, got map[string]interface{}) bool {
	for key, expected := range want {
		if asString(got[key]) != expected {
			return false
		}
	}
	return true
}

func actionMatches(actions []string, action string) bool {
	for _, a := range actions {
		if a == "*" || a == action {
			return true
		}
	}
	return false
}

// evalConditions evaluates the condition clauses of a policy body. The top
// level is a conjunction. A resolution or operator fault aborts evaluation
// and is reported as an error value.
func evalConditions(conds []model.Condition, ectx *pdpmodel.EvaluationContext, live map[string]pdpmodel.Value) (bool, *pdpmodel.ErrorValue) {
	for _, cond := range conds {
		matched, err := evalCondition(cond, ectx, live)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

func evalCondition(cond model.Condition, ectx *pdpmodel.EvaluationContext, live map[string]pdpmodel.Value) (bool, *pdpmodel.ErrorValue) {
	if cond.SubConditions != nil {
		return evalConditionSet(*cond.SubConditions, ectx, live)
	}

	actual, err := resolveAttribute(cond, ectx, live)
	if err != nil {
		return false, err
	}
	return applyOperator(cond, actual)
}

func evalConditionSet(set model.ConditionSet, ectx *pdpmodel.EvaluationContext, live map[string]pdpmodel.Value) (bool, *pdpmodel.ErrorValue) {
	switch strings.ToUpper(set.Operator) {
	case "AND", "":
		for _, c := range set.Conditions {
			matched, err := evalCondition(c, ectx, live)
			if err != nil || !matched {
				return false, err
			}
		}
		return true, nil
	case "OR":
		for _, c := range set.Conditions {
			matched, err := evalCondition(c, ectx, live)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	default:
		e := pdpmodel.NewError("unknown condition set operator %q", set.Operator)
		return false, &e
	}
}

func resolveAttribute(cond model.Condition, ectx *pdpmodel.EvaluationContext, live map[string]pdpmodel.Value) (interface{}, *pdpmodel.ErrorValue) {
	if cond.IsDynamic {
		v, ok := live[cond.Attribute]
		if !ok && ectx.Attributes != nil {
			v, ok = ectx.Attributes.Current(cond.Attribute)
		}
		if !ok {
			e := pdpmodel.NewError("live attribute %q is not available", cond.Attribute)
			return nil, &e
		}
		if errv, isErr := v.(pdpmodel.ErrorValue); isErr {
			return nil, &errv
		}
		return valueToNative(v), nil
	}

	sub := ectx.Subscription
	category, rest, found := strings.Cut(cond.Attribute, ".")
	if !found && category == "action" {
		return sub.Action, nil
	}
	var source map[string]interface{}
	switch category {
	case "subject":
		source = sub.Subject
	case "resource":
		source = sub.Resource
	case "environment":
		source = sub.Environment
	default:
		e := pdpmodel.NewError("unknown attribute %q", cond.Attribute)
		return nil, &e
	}
	v, ok := lookupPath(source, rest)
	if !ok {
		e := pdpmodel.NewError("attribute %q is undefined in the subscription", cond.Attribute)
		return nil, &e
	}
	return v, nil
}

func lookupPath(source map[string]interface{}, path string) (interface{}, bool) {
	cur := interface{}(source)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func applyOperator(cond model.Condition, actual interface{}) (bool, *pdpmodel.ErrorValue) {
	switch cond.Operator {
	case "eq":
		return asString(actual) == asString(cond.Value), nil
	case "ne":
		return asString(actual) != asString(cond.Value), nil
	case "gt", "gte", "lt", "lte":
		a, aok := toFloat64(actual)
		b, bok := toFloat64(cond.Value)
		if !aok || !bok {
			e := pdpmodel.NewError("operator %q needs numeric operands for attribute %q", cond.Operator, cond.Attribute)
			return false, &e
		}
		switch cond.Operator {
		case "gt":
			return a > b, nil
		case "gte":
			return a >= b, nil
		case "lt":
			return a < b, nil
		default:
			return a <= b, nil
		}
	case "in":
		list, ok := toSlice(cond.Value)
		if !ok {
			e := pdpmodel.NewError("operator \"in\" needs a list value for attribute %q", cond.Attribute)
			return false, &e
		}
		for _, item := range list {
			if asString(item) == asString(actual) {
				return true, nil
			}
		}
		return false, nil
	case "contains":
		list, ok := toSlice(actual)
		if !ok {
			return strings.Contains(asString(actual), asString(cond.Value)), nil
		}
		for _, item := range list {
			if asString(item) == asString(cond.Value) {
				return true, nil
			}
		}
		return false, nil
	default:
		e := pdpmodel.NewError("unknown condition operator %q", cond.Operator)
		return false, &e
	}
}

// dynamicAttributes collects the live attribute names referenced anywhere
// in the condition tree, without duplicates, in first-reference order.
func dynamicAttributes(conds []model.Condition) []string {
	seen := make(map[string]bool)
	var names []string
	var walk func(conds []model.Condition)
	walk = func(conds []model.Condition) {
		for _, c := range conds {
			if c.IsDynamic && !seen[c.Attribute] {
				seen[c.Attribute] = true
				names = append(names, c.Attribute)
			}
			if c.SubConditions != nil {
				walk(c.SubConditions.Conditions)
			}
		}
	}
	walk(conds)
	return names
}

func valueToNative(v pdpmodel.Value) interface{} {
	switch t := v.(type) {
	case pdpmodel.BooleanValue:
		return bool(t)
	case pdpmodel.StringValue:
		return string(t)
	case pdpmodel.NumberValue:
		return float64(t)
	case pdpmodel.ObjectValue:
		return map[string]interface{}(t)
	default:
		return nil
	}
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func toFloat64(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toSlice(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case []interface{}:
		return t, true
	case []string:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}
