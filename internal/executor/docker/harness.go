package docker

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sakif/js-playground/internal/executor"
)

// codeEnv carries the submitted source into the container. Passing it via
// the environment avoids any quoting of user text on the command line.
const codeEnv = "PLAYGROUND_CODE"

// resultMarker prefixes the envelope line the harness prints last.
const resultMarker = "__playground_result__:"

// harness is evaluated with `node -e`. It builds the unit with the Function
// constructor, captures console output, and prints one envelope line in the
// same shape the jsvm backend produces.
const harness = `
const code = process.env.` + codeEnv + ` || '';
delete process.env.` + codeEnv + `;
const out = [];
const fmt = (a) => {
  if (typeof a === 'string') return a;
  try { const s = JSON.stringify(a); return s === undefined ? String(a) : s; } catch (e) { return String(a); }
};
for (const level of ['log', 'info', 'debug', 'warn', 'error']) {
  const prefix = level === 'warn' || level === 'error' ? '[' + level + '] ' : '';
  console[level] = (...args) => { out.push(prefix + args.map(fmt).join(' ')); };
}
function msg(e) {
  try {
    if (e !== null && typeof e === 'object' && e.message !== undefined) return String(e.message);
    return String(e);
  } catch (_) { return 'uncaught exception'; }
}
let env;
let fn;
try {
  fn = new Function(code);
} catch (e) {
  env = { type: 'error', kind: 'syntax', error: msg(e) };
}
if (!env) {
  try {
    const v = fn.call(undefined);
    env = v === undefined ? { type: 'success', undefined: true } : { type: 'success', result: v };
  } catch (e) {
    env = { type: 'error', kind: 'runtime', error: msg(e) };
  }
}
env.output = out;
let line;
try { line = JSON.stringify(env); } catch (e) { env.result = String(env.result); line = JSON.stringify(env); }
process.stdout.write('\n' + '` + resultMarker + `' + line + '\n');
`

// parseEnvelope finds the last envelope line in stdout. Earlier marker
// lines, which user code could print, are ignored.
func parseEnvelope(stdout string) (*executor.ExecutionResult, bool, error) {
	var last string
	found := false

	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := sc.Text(); strings.HasPrefix(line, resultMarker) {
			last = strings.TrimPrefix(line, resultMarker)
			found = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, false, fmt.Errorf("docker: scanning output: %w", err)
	}
	if !found {
		return nil, false, nil
	}

	var res executor.ExecutionResult
	if err := json.Unmarshal([]byte(last), &res); err != nil {
		return nil, true, fmt.Errorf("docker: decoding result envelope: %w", err)
	}

	if res.Type == executor.TypeError {
		normalized := executor.Failure(res.Kind, res.Error)
		normalized.Output = res.Output
		return normalized, true, nil
	}
	return &res, true, nil
}
