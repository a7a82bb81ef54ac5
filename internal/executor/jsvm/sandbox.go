package jsvm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// sandbox is a single-use interpreter: a pristine goja runtime plus the
// console buffer bound to it. It is discarded after one run so nothing a
// run defines can be seen by the next.
type sandbox struct {
	vm      *goja.Runtime
	out     *outputBuffer
	cfg     Config
	natives natives
}

// natives are built-in methods captured before any user code runs.
type natives struct {
	mapForEach goja.Callable
	setForEach goja.Callable
}

func protoMethod(vm *goja.Runtime, ctor, method string) goja.Callable {
	c, ok := vm.Get(ctor).(*goja.Object)
	if !ok {
		return nil
	}
	proto, ok := c.Get("prototype").(*goja.Object)
	if !ok {
		return nil
	}
	fn, _ := goja.AssertFunction(proto.Get(method))
	return fn
}

func newSandbox(cfg Config) *sandbox {
	vm := goja.New()
	vm.SetMaxCallStackSize(cfg.MaxCallStackSize)

	sb := &sandbox{
		vm:  vm,
		out: &outputBuffer{limit: cfg.MaxOutputBytes},
		cfg: cfg,
		natives: natives{
			mapForEach: protoMethod(vm, "Map", "forEach"),
			setForEach: protoMethod(vm, "Set", "forEach"),
		},
	}

	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		prefix := ""
		if level == "warn" || level == "error" {
			prefix = "[" + level + "] "
		}
		fn := vm.ToValue(sb.consoleFunc(prefix)).(*goja.Object)
		// Native functions are named after their Go symbol otherwise.
		_ = fn.DefineDataProperty("name", vm.ToValue(level), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
		_ = console.Set(level, fn)
	}
	_ = vm.Set("console", console)

	return sb
}

func (sb *sandbox) consoleFunc(prefix string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, sb.format(arg))
		}
		sb.out.add(prefix + strings.Join(parts, " "))
		return goja.Undefined()
	}
}

// format renders a console argument: strings verbatim, everything else as
// the JSON of its converted value.
func (sb *sandbox) format(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if _, isObj := v.(*goja.Object); !isObj {
		if s, ok := v.Export().(string); ok {
			return s
		}
	}

	converted := newConverter(sb).convert(v)
	b, err := json.Marshal(converted)
	if err != nil {
		return fmt.Sprint(converted)
	}
	return string(b)
}

// outputBuffer collects console lines up to a byte limit.
type outputBuffer struct {
	lines     []string
	size      int
	limit     int
	truncated bool
}

func (b *outputBuffer) add(line string) {
	if b.truncated {
		return
	}
	if b.size+len(line) > b.limit {
		b.lines = append(b.lines, "[output truncated]")
		b.truncated = true
		return
	}
	b.size += len(line)
	b.lines = append(b.lines, line)
}
