package jsvm_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/js-playground/internal/apperror"
	"github.com/sakif/js-playground/internal/executor"
	"github.com/sakif/js-playground/internal/executor/jsvm"
)

func newTestExecutor(t *testing.T, mutate ...func(*jsvm.Config)) *jsvm.Executor {
	t.Helper()
	cfg := jsvm.DefaultConfig()
	cfg.PoolSize = 1
	for _, m := range mutate {
		m(&cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	exec := jsvm.New(cfg, logger)
	t.Cleanup(func() { exec.Close() })
	return exec
}

func run(t *testing.T, exec *jsvm.Executor, code string) *executor.ExecutionResult {
	t.Helper()
	res, err := exec.Execute(context.Background(), executor.ExecutionRequest{ID: "test", Code: code})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestExecute_Scenarios(t *testing.T) {
	exec := newTestExecutor(t)

	t.Run("arithmetic return", func(t *testing.T) {
		res := run(t, exec, "return 2 + 2;")
		assert.Equal(t, executor.TypeSuccess, res.Type)
		assert.EqualValues(t, 4, res.Result)
		assert.False(t, res.Undefined)
	})

	t.Run("thrown Error", func(t *testing.T) {
		res := run(t, exec, "throw new Error('boom');")
		assert.Equal(t, executor.TypeError, res.Type)
		assert.Equal(t, "boom", res.Error)
		assert.Equal(t, executor.KindRuntime, res.Kind)
	})

	t.Run("syntax error", func(t *testing.T) {
		res := run(t, exec, "not valid js !!")
		assert.Equal(t, executor.TypeError, res.Type)
		assert.Equal(t, executor.KindSyntax, res.Kind)
		assert.NotEmpty(t, res.Error)
	})

	t.Run("empty code", func(t *testing.T) {
		res := run(t, exec, "")
		assert.Equal(t, executor.TypeSuccess, res.Type)
		assert.Nil(t, res.Result)
		assert.True(t, res.Undefined)
	})

	t.Run("thrown string", func(t *testing.T) {
		res := run(t, exec, "throw 'plain string';")
		assert.Equal(t, executor.TypeError, res.Type)
		assert.Equal(t, "plain string", res.Error)
	})
}

func TestExecute_ThrownValues(t *testing.T) {
	exec := newTestExecutor(t)

	tests := []struct {
		name    string
		code    string
		wantErr string
	}{
		{"number", "throw 42;", "42"},
		{"null", "throw null;", "null"},
		{"undefined", "throw undefined;", "undefined"},
		{"plain object", "throw {code: 7};", "[object Object]"},
		{"object with message", "throw {message: 'custom'};", "custom"},
		{"TypeError subclass", "throw new TypeError('bad type');", "bad type"},
		{"empty Error message", "throw new Error();", "runtime error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, exec, tt.code)
			assert.Equal(t, executor.TypeError, res.Type)
			assert.Equal(t, executor.KindRuntime, res.Kind)
			assert.Equal(t, tt.wantErr, res.Error)
		})
	}
}

func TestExecute_RuntimeErrors(t *testing.T) {
	exec := newTestExecutor(t)

	t.Run("reference error", func(t *testing.T) {
		res := run(t, exec, "return missing + 1;")
		assert.Equal(t, executor.KindRuntime, res.Kind)
		assert.Contains(t, res.Error, "missing")
	})

	t.Run("type error", func(t *testing.T) {
		res := run(t, exec, "const x = null; return x.field;")
		assert.Equal(t, executor.KindRuntime, res.Kind)
		assert.NotEmpty(t, res.Error)
	})

	t.Run("unbounded recursion", func(t *testing.T) {
		res := run(t, exec, "function f() { return f(); } return f();")
		assert.Equal(t, executor.TypeError, res.Type)
		assert.Equal(t, executor.KindRuntime, res.Kind)
		assert.Equal(t, "RangeError: Maximum call stack size exceeded", res.Error)
	})

	t.Run("recursion cannot be caught", func(t *testing.T) {
		res := run(t, exec, "function f() { return f(); } try { f(); } catch (e) { return 'caught'; }")
		assert.Equal(t, "RangeError: Maximum call stack size exceeded", res.Error)
	})

	t.Run("thrown symbol", func(t *testing.T) {
		res := run(t, exec, "throw Symbol('s');")
		assert.Equal(t, executor.KindRuntime, res.Kind)
		assert.Equal(t, "Symbol(s)", res.Error)
	})
}

func TestExecute_ResultConversion(t *testing.T) {
	exec := newTestExecutor(t)

	tests := []struct {
		name string
		code string
		want any
	}{
		{"string", "return 'hi';", "hi"},
		{"bool", "return 1 < 2;", true},
		{"float", "return 0.5 + 0.25;", 0.75},
		{"NaN", "return 0 / 0;", "NaN"},
		{"Infinity", "return 1 / 0;", "Infinity"},
		{"negative Infinity", "return -1 / 0;", "-Infinity"},
		{"array", "return [1, 'two', true];", []any{int64(1), "two", true}},
		{"object", "return {name: 'ada', tags: ['x']};", map[string]any{"name": "ada", "tags": []any{"x"}}},
		{"cycle", "const a = {name: 'a'}; a.self = a; return a;", map[string]any{"name": "a", "self": "[Circular]"}},
		{"shared reference", "const x = {v: 1}; return [x, x];", []any{map[string]any{"v": int64(1)}, map[string]any{"v": int64(1)}}},
		{"Map", "return new Map([['a', 1], [2, 'two']]);", map[string]any{"a": int64(1), "2": "two"}},
		{"Set", "return new Set([1, 2, 2, 3]);", []any{int64(1), int64(2), int64(3)}},
		{"Map with object keys", "return new Map([[{id: 1}, 'obj'], [[1, 2], 'arr']]);", map[string]any{"[object Object]": "obj", "1,2": "arr"}},
		{"Map holding itself", "const m = new Map(); m.set('self', m); return m;", map[string]any{"self": "[Circular]"}},
		{"Set holding itself", "const s = new Set([1]); s.add(s); return s;", []any{int64(1), "[Circular]"}},
		{"Map nested in object", "return {m: new Map([['k', [1]]])};", map[string]any{"m": map[string]any{"k": []any{int64(1)}}}},
		{"Map after prototype tampering", "Map.prototype.forEach = null; Map.prototype[Symbol.iterator] = null; return new Map([['a', 1]]);", map[string]any{"a": int64(1)}},
		{"symbol", "return Symbol('x');", "Symbol(x)"},
		{"symbol without description", "return Symbol();", "Symbol()"},
		{"Date", "return new Date(0);", "1970-01-01T00:00:00.000Z"},
		{"named function", "return function add(a, b) { return a + b; };", "[Function: add]"},
		{"nested undefined", "return {a: undefined};", map[string]any{"a": nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, exec, tt.code)
			require.Equal(t, executor.TypeSuccess, res.Type, res.Error)
			assert.Equal(t, tt.want, res.Result)
		})
	}
}

func TestExecute_NullIsNotUndefined(t *testing.T) {
	exec := newTestExecutor(t)

	null := run(t, exec, "return null;")
	assert.True(t, null.OK())
	assert.Nil(t, null.Result)
	assert.False(t, null.Undefined)

	nothing := run(t, exec, "const x = 1;")
	assert.True(t, nothing.OK())
	assert.True(t, nothing.Undefined)
}

func TestExecute_Limits(t *testing.T) {
	t.Run("result depth", func(t *testing.T) {
		exec := newTestExecutor(t, func(c *jsvm.Config) { c.MaxResultDepth = 2 })
		res := run(t, exec, "return {a: {b: {c: 1}}};")
		assert.Equal(t, map[string]any{"a": map[string]any{"b": "[Object]"}}, res.Result)
	})

	t.Run("result items", func(t *testing.T) {
		exec := newTestExecutor(t, func(c *jsvm.Config) { c.MaxResultItems = 3 })
		res := run(t, exec, "return [1, 2, 3, 4, 5];")
		assert.Equal(t, []any{int64(1), int64(2), int64(3), "[... 2 more items]"}, res.Result)
	})

	t.Run("set items", func(t *testing.T) {
		exec := newTestExecutor(t, func(c *jsvm.Config) { c.MaxResultItems = 2 })
		res := run(t, exec, "return new Set([1, 2, 3, 4]);")
		assert.Equal(t, []any{int64(1), int64(2), "[... 2 more items]"}, res.Result)
	})

	t.Run("output bytes", func(t *testing.T) {
		exec := newTestExecutor(t, func(c *jsvm.Config) { c.MaxOutputBytes = 20 })
		res := run(t, exec, "for (let i = 0; i < 100; i++) console.log('line ' + i);")
		require.True(t, res.OK())
		require.NotEmpty(t, res.Output)
		assert.Equal(t, "[output truncated]", res.Output[len(res.Output)-1])
		assert.Less(t, len(res.Output), 100)
	})
}

func TestExecute_ConsoleOutput(t *testing.T) {
	exec := newTestExecutor(t)

	res := run(t, exec, `
		console.log('hi', 1, {a: [1, 2]});
		console.error('oops');
		throw new Error('after logging');
	`)

	assert.Equal(t, executor.TypeError, res.Type)
	assert.Equal(t, []string{`hi 1 {"a":[1,2]}`, "[error] oops"}, res.Output)
}

func TestExecute_ConsoleFunctionNames(t *testing.T) {
	exec := newTestExecutor(t)

	res := run(t, exec, "return this;")
	require.True(t, res.OK(), res.Error)

	body, err := json.Marshal(res.Result)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "github.com")

	global, ok := res.Result.(map[string]any)
	require.True(t, ok)
	console, ok := global["console"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "[Function: log]", console["log"])
	assert.Equal(t, "[Function: error]", console["error"])

	named := run(t, exec, "return console.warn.name;")
	assert.Equal(t, "warn", named.Result)
}

func TestExecute_NoStateLeaksBetweenRuns(t *testing.T) {
	exec := newTestExecutor(t)

	first := run(t, exec, "var leaked = 42; globalThis.other = 1; Array.prototype.polluted = true; return leaked;")
	assert.EqualValues(t, 42, first.Result)

	second := run(t, exec, "return [typeof leaked, typeof other, typeof [].polluted].join(',');")
	assert.Equal(t, "undefined,undefined,undefined", second.Result)
}

func TestExecute_NoHostAccess(t *testing.T) {
	exec := newTestExecutor(t)

	res := run(t, exec, "return [typeof require, typeof process, typeof fetch].join(',');")
	assert.Equal(t, "undefined,undefined,undefined", res.Result)
}

func TestExecute_Timeout(t *testing.T) {
	exec := newTestExecutor(t, func(c *jsvm.Config) { c.Timeout = 100 * time.Millisecond })

	res := run(t, exec, "while (true) {}")
	assert.Equal(t, executor.TypeError, res.Type)
	assert.Equal(t, executor.KindTimeout, res.Kind)
	assert.Contains(t, res.Error, "timed out")

	// The executor is still usable afterwards.
	after := run(t, exec, "return 'alive';")
	assert.Equal(t, "alive", after.Result)
}

func TestExecute_TimeoutCannotBeCaught(t *testing.T) {
	exec := newTestExecutor(t, func(c *jsvm.Config) { c.Timeout = 100 * time.Millisecond })

	res := run(t, exec, "try { while (true) {} } catch (e) { return 'escaped'; }")
	assert.Equal(t, executor.KindTimeout, res.Kind)
}

func TestExecute_Cancellation(t *testing.T) {
	exec := newTestExecutor(t, func(c *jsvm.Config) { c.Timeout = 10 * time.Second })

	t.Run("cancelled mid-run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(50*time.Millisecond, cancel)

		res, err := exec.Execute(ctx, executor.ExecutionRequest{Code: "while (true) {}"})
		require.NoError(t, err)
		assert.Equal(t, executor.KindCancelled, res.Kind)
	})

	t.Run("cancelled before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := exec.Execute(ctx, executor.ExecutionRequest{Code: "return 1;"})
		require.NoError(t, err)
		assert.Equal(t, executor.KindCancelled, res.Kind)
	})
}

func TestExecute_CarriesIDAndDuration(t *testing.T) {
	exec := newTestExecutor(t)

	res, err := exec.Execute(context.Background(), executor.ExecutionRequest{ID: "abc", Code: "return 1;"})
	require.NoError(t, err)
	assert.Equal(t, "abc", res.ID)
	assert.GreaterOrEqual(t, res.DurationMS, int64(0))
}

func TestExecute_RejectsOversizedCode(t *testing.T) {
	exec := newTestExecutor(t)

	_, err := exec.Execute(context.Background(), executor.ExecutionRequest{
		Code: strings.Repeat("1;", executor.MaxCodeLength),
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestExecute_Concurrent(t *testing.T) {
	exec := newTestExecutor(t, func(c *jsvm.Config) { c.PoolSize = 2 })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := exec.Execute(context.Background(), executor.ExecutionRequest{
				Code: "let s = 0; for (let i = 0; i < 1000; i++) s += i; return s;",
			})
			assert.NoError(t, err)
			assert.EqualValues(t, 499500, res.Result)
		}(i)
	}
	wg.Wait()
}

func TestExecute_WithWorker(t *testing.T) {
	exec := newTestExecutor(t)

	results := make(chan *executor.ExecutionResult, 2)
	w := executor.NewWorker(exec, func(res *executor.ExecutionResult) { results <- res })
	defer w.Close()

	idA, err := w.Submit(executor.ExecutionRequest{Code: "var x = 'A'; return x;"})
	require.NoError(t, err)
	idB, err := w.Submit(executor.ExecutionRequest{Code: "return typeof x;"})
	require.NoError(t, err)

	first := <-results
	second := <-results
	assert.Equal(t, idA, first.ID)
	assert.Equal(t, "A", first.Result)
	assert.Equal(t, idB, second.ID)
	assert.Equal(t, "undefined", second.Result)
}
