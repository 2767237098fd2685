// Package settings implements the render setting catalog: the two fixed
// tables of global and per-object wkhtmltopdf settings, with JSON value
// coercion against each key's declared type.
package settings

import (
	"encoding/json"
	"fmt"
)

// ValueType is the declared type a catalog entry's JSON value must coerce
// to.
type ValueType int

// The five declared value types a setting can carry.
const (
	String ValueType = iota
	Bool
	Int
	Uint
	Float
)

func (t ValueType) String() string {
	switch t {
	case String:
		return "String"
	case Bool:
		return "Bool"
	case Int:
		return "Int"
	case Uint:
		return "Uint"
	case Float:
		return "Float"
	default:
		return "Unknown"
	}
}

// Scope names the table a setting belongs to, used only in error messages.
type Scope string

// The two catalog scopes.
const (
	ScopeGlobal Scope = "Global"
	ScopeObject Scope = "Object"
)

// GlobalSettings is the fixed global-settings table, transcribed from the
// renderer's own settings surface: page geometry, orientation, color mode,
// DPI, pagination, outline, compression, margins, image quality, and the
// cookie jar path.
var GlobalSettings = map[string]ValueType{
	"size.pageSize":    String,
	"size.width":       String,
	"size.height":      String,
	"orientation":      String,
	"colorMode":        String,
	"dpi":              Uint,
	"pageOffset":       Int,
	"copies":           Uint,
	"collate":          Bool,
	"outline":          Bool,
	"outlineDepth":     Uint,
	"dumpOutline":      String,
	"out":              String,
	"documentTitle":    String,
	"useCompression":   Bool,
	"margin.top":       String,
	"margin.bottom":    String,
	"margin.left":      String,
	"margin.right":     String,
	"imageDPI":         Uint,
	"imageQuality":     Uint,
	"load.cookieJar":   String,
}

// ObjectSettings is the fixed per-object settings table: page selection,
// link/form behavior, table-of-contents controls, header/footer sub-fields,
// load sub-fields, and web rendering sub-fields.
var ObjectSettings = map[string]ValueType{
	"page":                           String,
	"useExternalLinks":               Bool,
	"useLocalLinks":                  Bool,
	"produceForms":                   Bool,
	"includeInOutline":                Bool,
	"pagesCount":                     Bool,
	"toc.useDottedLines":             Bool,
	"toc.captionText":                String,
	"toc.forwardLinks":               Bool,
	"toc.backLinks":                  Bool,
	"toc.indentation":                String,
	"toc.fontScale":                  Float,
	"header.fontName":                String,
	"header.fontSize":                String,
	"header.left":                    String,
	"header.center":                  String,
	"header.right":                   String,
	"header.line":                    Bool,
	"header.spacing":                 Float,
	"header.htmlUrl":                 String,
	"footer.fontName":                String,
	"footer.fontSize":                String,
	"footer.left":                    String,
	"footer.center":                  String,
	"footer.right":                   String,
	"footer.line":                    Bool,
	"footer.spacing":                 Float,
	"footer.htmlUrl":                 String,
	"load.username":                  String,
	"load.password":                  String,
	"load.jsdelay":                   Uint,
	"load.windowStatus":              String,
	"load.zoomFactor":                String,
	"load.blockLocalFileAccess":      String,
	"load.stopSlowScripts":           Bool,
	"load.loadErrorHandling":         String,
	"load.proxy":                     String,
	"web.background":                 Bool,
	"web.loadImages":                 Bool,
	"web.enableJavascript":           Bool,
	"web.enableIntelligentShrinking": Bool,
	"web.minimumFontSize":            Uint,
	"web.defaultEncoding":            String,
	"web.printMediaType":             Bool,
	"web.userStyleSheet":             String,
	"web.enablePlugins":              Bool,
}

// TypeMismatchError reports a catalog value that failed to coerce to its
// declared type. Its Error() text is stable and deliberately names scope,
// key, declared type, and offending value, per the wire contract's 400
// message shape.
type TypeMismatchError struct {
	Scope     Scope
	Key       string
	Declared  ValueType
	RawValue  json.RawMessage
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s setting '%s' must be of type '%s': %s", e.Scope, e.Key, e.Declared, e.RawValue)
}

// Coerce validates raw against the declared type for key in the given
// table, returning the coerced Go value (string, bool, int64, uint64, or
// float64) or a *TypeMismatchError. A key absent from the table is not an
// error here — callers are expected to skip unknown keys before calling
// Coerce, per the catalog's "unknown keys are silently ignored" rule.
func Coerce(scope Scope, table map[string]ValueType, key string, raw json.RawMessage) (interface{}, error) {
	declared, ok := table[key]
	if !ok {
		return nil, nil
	}

	mismatch := &TypeMismatchError{Scope: scope, Key: key, Declared: declared, RawValue: raw}

	switch declared {
	case String:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, mismatch
		}
		return v, nil
	case Bool:
		var v bool
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, mismatch
		}
		return v, nil
	case Int:
		var v int64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, mismatch
		}
		return v, nil
	case Uint:
		var v uint64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, mismatch
		}
		return v, nil
	case Float:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, mismatch
		}
		return v, nil
	default:
		return nil, mismatch
	}
}

// CoerceAll validates every key in values against table, returning the
// first TypeMismatchError encountered. Keys not present in table are
// skipped rather than rejected.
func CoerceAll(scope Scope, table map[string]ValueType, values map[string]json.RawMessage) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(values))
	for key, raw := range values {
		coerced, err := Coerce(scope, table, key, raw)
		if err != nil {
			return nil, err
		}
		if coerced == nil {
			continue
		}
		out[key] = coerced
	}
	return out, nil
}
