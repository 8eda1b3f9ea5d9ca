// Package buildutil reads keyword and positional arguments out of Starlark
// call expressions parsed by buildtools. It backs the FINDER.star config
// reader.
package buildutil

import (
	"strconv"

	"github.com/bazelbuild/buildtools/build"
)

// Attr returns the right-hand side of the keyword argument name, or nil.
func Attr(call *build.CallExpr, name string) build.Expr {
	for _, arg := range call.List {
		assign, ok := arg.(*build.AssignExpr)
		if !ok {
			continue
		}
		if lhs, ok := assign.LHS.(*build.Ident); ok && lhs.Name == name {
			return assign.RHS
		}
	}
	return nil
}

// Has reports whether the keyword argument is present at all.
func Has(call *build.CallExpr, name string) bool {
	return Attr(call, name) != nil
}

// String extracts a string attribute from a function call by name.
// If name is empty, the first positional argument is used instead.
// Returns empty string if the attribute is not found or not a string.
func String(call *build.CallExpr, name string) string {
	var expr build.Expr
	if name == "" {
		if len(call.List) > 0 {
			expr = call.List[0]
		}
	} else {
		expr = Attr(call, name)
	}
	if str, ok := expr.(*build.StringExpr); ok {
		return str.Value
	}
	return ""
}

// Int extracts an integer attribute. Returns 0 if absent or not an integer.
func Int(call *build.CallExpr, name string) int {
	if lit, ok := Attr(call, name).(*build.LiteralExpr); ok {
		if val, err := strconv.Atoi(lit.Token); err == nil {
			return val
		}
	}
	return 0
}

// Bool extracts a boolean attribute. Returns false if absent or not True/False.
func Bool(call *build.CallExpr, name string) bool {
	if ident, ok := Attr(call, name).(*build.Ident); ok {
		return ident.Name == "True"
	}
	return false
}

// IsNone returns true if the named attribute exists and is set to None.
func IsNone(call *build.CallExpr, name string) bool {
	ident, ok := Attr(call, name).(*build.Ident)
	return ok && ident.Name == "None"
}

// StringList extracts a list of strings. Returns nil if the attribute is not
// found or not a list. Non-string elements are skipped.
func StringList(call *build.CallExpr, name string) []string {
	list, ok := Attr(call, name).(*build.ListExpr)
	if !ok {
		return nil
	}
	result := make([]string, 0, len(list.List))
	for _, elem := range list.List {
		if str, ok := elem.(*build.StringExpr); ok {
			result = append(result, str.Value)
		}
	}
	return result
}

// StringDict extracts a dict with string keys and string values. Entries of
// any other shape are skipped. Returns nil if the attribute is not a dict.
func StringDict(call *build.CallExpr, name string) map[string]string {
	dict, ok := Attr(call, name).(*build.DictExpr)
	if !ok {
		return nil
	}
	result := make(map[string]string, len(dict.List))
	for _, kv := range dict.List {
		key, kok := kv.Key.(*build.StringExpr)
		val, vok := kv.Value.(*build.StringExpr)
		if kok && vok {
			result[key.Value] = val.Value
		}
	}
	return result
}

// PositionalStrings returns all positional string arguments from a call,
// optionally skipping the first n arguments.
func PositionalStrings(call *build.CallExpr, skip int) []string {
	var result []string
	for i, arg := range call.List {
		if i < skip {
			continue
		}
		if str, ok := arg.(*build.StringExpr); ok {
			result = append(result, str.Value)
		}
	}
	return result
}

// ExtractValue converts a build.Expr to a Go value.
// Handles strings, integers, booleans (True/False/None), lists, and dicts.
// Returns the raw expression for unhandled types.
func ExtractValue(expr build.Expr) any {
	switch e := expr.(type) {
	case *build.StringExpr:
		return e.Value
	case *build.LiteralExpr:
		if val, err := strconv.Atoi(e.Token); err == nil {
			return val
		}
		return e.Token
	case *build.Ident:
		switch e.Name {
		case "True":
			return true
		case "False":
			return false
		case "None":
			return nil
		default:
			return e.Name
		}
	case *build.ListExpr:
		result := make([]any, 0, len(e.List))
		for _, item := range e.List {
			result = append(result, ExtractValue(item))
		}
		return result
	case *build.DictExpr:
		result := make(map[string]any)
		for _, kv := range e.List {
			if keyStr, ok := kv.Key.(*build.StringExpr); ok {
				result[keyStr.Value] = ExtractValue(kv.Value)
			}
		}
		return result
	default:
		return expr
	}
}

// FuncName returns the function name from a CallExpr.
// Returns empty string for method calls like foo.bar().
func FuncName(call *build.CallExpr) string {
	if ident, ok := call.X.(*build.Ident); ok {
		return ident.Name
	}
	return ""
}
