package jsvm

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/dop251/goja"
)

// goja gives Map and Set the plain "Object" class; their export types are
// what sets them apart.
var (
	mapExportType = reflect.TypeOf([][2]any{})
	setExportType = reflect.TypeOf([]any{})
)

// converter turns a goja value into a JSON-safe Go value.
//
// Conventions: undefined and null become nil; NaN and the infinities become
// their string names; functions and symbols become a short label; Dates
// become ISO-8601 strings; Maps become objects keyed by String(key); Sets
// become arrays; a reference back to an enclosing object becomes
// "[Circular]"; anything nested deeper than MaxResultDepth becomes
// "[Object]" or "[Array]".
//
// Conversion may call user getters and proxy traps, so callers run it with
// the interrupt deadline still armed and recover from panics.
type converter struct {
	vm       *goja.Runtime
	natives  natives
	maxDepth int
	maxItems int
	stack    map[*goja.Object]bool
}

func newConverter(sb *sandbox) *converter {
	return &converter{
		vm:       sb.vm,
		natives:  sb.natives,
		maxDepth: sb.cfg.MaxResultDepth,
		maxItems: sb.cfg.MaxResultItems,
		stack:    make(map[*goja.Object]bool),
	}
}

func (c *converter) convert(v goja.Value) any {
	return c.value(v, 0)
}

func (c *converter) value(v goja.Value, depth int) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if sym, ok := v.(*goja.Symbol); ok {
		return symbolLabel(sym)
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		return primitive(v)
	}

	if _, isFunc := goja.AssertFunction(obj); isFunc {
		return functionLabel(obj)
	}

	class := obj.ClassName()
	if class == "Object" {
		switch obj.ExportType() {
		case mapExportType:
			class = "Map"
		case setExportType:
			class = "Set"
		}
	}
	if c.stack[obj] {
		return "[Circular]"
	}
	if depth >= c.maxDepth {
		if class == "Array" {
			return "[Array]"
		}
		return "[Object]"
	}

	c.stack[obj] = true
	defer delete(c.stack, obj)

	switch class {
	case "Array":
		return c.array(obj, depth)
	case "Date":
		return c.date(obj)
	case "Map":
		return c.mapEntries(obj, depth)
	case "Set":
		return c.setValues(obj, depth)
	case "Error", "RegExp", "Number", "String", "Boolean", "BigInt":
		return obj.String()
	}

	out := make(map[string]any)
	for i, key := range obj.Keys() {
		if i >= c.maxItems {
			break
		}
		out[key] = c.value(obj.Get(key), depth+1)
	}
	return out
}

func primitive(v goja.Value) any {
	switch x := v.Export().(type) {
	case bool, string, int64:
		return x
	case float64:
		switch {
		case math.IsNaN(x):
			return "NaN"
		case math.IsInf(x, 1):
			return "Infinity"
		case math.IsInf(x, -1):
			return "-Infinity"
		}
		return x
	}
	return v.String()
}

func functionLabel(obj *goja.Object) string {
	name := obj.Get("name")
	if name == nil || goja.IsUndefined(name) || name.String() == "" {
		return "[Function (anonymous)]"
	}
	return fmt.Sprintf("[Function: %s]", name.String())
}

func symbolLabel(sym *goja.Symbol) string {
	return "Symbol(" + sym.String() + ")"
}

func (c *converter) array(obj *goja.Object, depth int) []any {
	n := obj.Get("length").ToInteger()
	limit := n
	if limit > int64(c.maxItems) {
		limit = int64(c.maxItems)
	}

	out := make([]any, 0, limit+1)
	for i := int64(0); i < limit; i++ {
		out = append(out, c.value(obj.Get(strconv.FormatInt(i, 10)), depth+1))
	}
	if n > limit {
		out = append(out, fmt.Sprintf("[... %d more items]", n-limit))
	}
	return out
}

func (c *converter) date(obj *goja.Object) any {
	if iso, ok := goja.AssertFunction(obj.Get("toISOString")); ok {
		s, err := iso(obj)
		if err == nil {
			return s.String()
		}
		if uncatchable(err) {
			panic(err)
		}
	}
	// Invalid dates throw from toISOString.
	return obj.String()
}

// collect walks a Map or Set with the forEach captured when the sandbox was
// built, so user code cannot redirect iteration. It keeps the first maxItems
// (key, value) pairs and reports the total.
func (c *converter) collect(forEach goja.Callable, obj *goja.Object) ([][2]goja.Value, int, bool) {
	if forEach == nil {
		return nil, 0, false
	}

	var (
		pairs [][2]goja.Value
		total int
	)
	cb := c.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if total < c.maxItems {
			pairs = append(pairs, [2]goja.Value{call.Argument(1), call.Argument(0)})
		}
		total++
		return goja.Undefined()
	})
	if _, err := forEach(obj, cb); err != nil {
		// Interrupts land here too; the run's recover classifies them.
		panic(err)
	}
	return pairs, total, true
}

func (c *converter) mapEntries(obj *goja.Object, depth int) any {
	pairs, _, ok := c.collect(c.natives.mapForEach, obj)
	if !ok {
		return "[object Map]"
	}

	out := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		out[c.key(kv[0])] = c.value(kv[1], depth+1)
	}
	return out
}

func (c *converter) setValues(obj *goja.Object, depth int) any {
	pairs, total, ok := c.collect(c.natives.setForEach, obj)
	if !ok {
		return "[object Set]"
	}

	out := make([]any, 0, len(pairs)+1)
	for _, kv := range pairs {
		out = append(out, c.value(kv[1], depth+1))
	}
	if total > len(pairs) {
		out = append(out, fmt.Sprintf("[... %d more items]", total-len(pairs)))
	}
	return out
}

// key renders a Map key the way String(key) would. Objects whose toString
// throws fall back to their class tag.
func (c *converter) key(v goja.Value) (s string) {
	switch k := v.(type) {
	case nil:
		return "undefined"
	case *goja.Symbol:
		return symbolLabel(k)
	case *goja.Object:
		if _, isFunc := goja.AssertFunction(k); isFunc {
			return functionLabel(k)
		}
		defer func() {
			if r := recover(); r != nil {
				if uncatchable(r) {
					panic(r)
				}
				s = "[object " + k.ClassName() + "]"
			}
		}()
		return k.String()
	}
	return v.String()
}

func uncatchable(r any) bool {
	switch r.(type) {
	case *goja.InterruptedError, *goja.StackOverflowError:
		return true
	}
	return false
}
