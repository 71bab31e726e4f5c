package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/clewhq/clew/internal/tool"
)

const declarationsJSON = `[
  {"function_declarations": [
    {"name": "greet", "description": "Say hello", "parameters": {"type": "object", "properties": {"name": {"type": "string"}}}},
    {"name": "count", "description": "Count things"}
  ]}
]`

// writeScript drops an executable shell script into a temp dir.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDiscoverer_Refresh(t *testing.T) {
	t.Parallel()

	discover := writeScript(t, "discover.sh", `cat <<'EOF'
`+declarationsJSON+`
EOF`)

	reg := tool.NewRegistry(nil)
	d := NewDiscoverer(Config{
		DiscoveryCommand: discover,
		CallCommand:      "/bin/true",
	}, reg, nil, nil)

	n, err := d.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n != 2 {
		t.Errorf("registered %d tools, want 2", n)
	}

	greet, err := reg.Get("greet")
	if err != nil {
		t.Fatalf("Get greet: %v", err)
	}
	if greet.Description() != "Say hello" {
		t.Errorf("description = %q", greet.Description())
	}
	var schema map[string]any
	if err := json.Unmarshal(greet.Schema(), &schema); err != nil {
		t.Fatalf("schema not valid JSON: %v", err)
	}

	// A declaration without parameters still gets an object schema.
	count, err := reg.Get("count")
	if err != nil {
		t.Fatalf("Get count: %v", err)
	}
	if string(count.Schema()) != `{"type":"object"}` {
		t.Errorf("schema = %s", count.Schema())
	}
}

func TestDiscoverer_RefreshReplacesPreviousRun(t *testing.T) {
	t.Parallel()

	discover := writeScript(t, "discover.sh",
		`echo '[{"function_declarations":[{"name":"only_tool"}]}]'`)

	reg := tool.NewRegistry(nil)
	d := NewDiscoverer(Config{DiscoveryCommand: discover, CallCommand: "/bin/true"}, reg, nil, nil)

	for i := 0; i < 2; i++ {
		if _, err := d.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh %d: %v", i, err)
		}
	}
	if names := reg.Names(); len(names) != 1 {
		t.Errorf("registry holds %v, want one tool", names)
	}
}

func TestDiscoverer_MissingConfig(t *testing.T) {
	t.Parallel()

	reg := tool.NewRegistry(nil)

	_, err := NewDiscoverer(Config{}, reg, nil, nil).Refresh(context.Background())
	if !errors.Is(err, ErrNoDiscoveryCommand) {
		t.Errorf("err = %v, want ErrNoDiscoveryCommand", err)
	}

	_, err = NewDiscoverer(Config{DiscoveryCommand: "echo"}, reg, nil, nil).Refresh(context.Background())
	if !errors.Is(err, ErrNoCallCommand) {
		t.Errorf("err = %v, want ErrNoCallCommand", err)
	}
}

func TestDiscoverer_BadJSON(t *testing.T) {
	t.Parallel()

	discover := writeScript(t, "discover.sh", `echo 'not json'`)
	reg := tool.NewRegistry(nil)
	d := NewDiscoverer(Config{DiscoveryCommand: discover, CallCommand: "/bin/true"}, reg, nil, nil)

	if _, err := d.Refresh(context.Background()); err == nil {
		t.Error("Refresh succeeded on malformed output")
	}
}

func TestSubprocessTool_Execute(t *testing.T) {
	t.Parallel()

	// The call command receives the tool name as its last argument and the
	// JSON args on stdin; it echoes both back.
	call := writeScript(t, "call.sh", `printf 'tool=%s args=' "$1"; cat`)

	st := &subprocessTool{
		decl:        declaration{Name: "greet"},
		callCommand: call,
		timeout:     DefaultTimeout,
	}

	res, err := st.Execute(context.Background(), json.RawMessage(`{"name":"ada"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Err != "" {
		t.Fatalf("unexpected domain failure: %s", res.Err)
	}
	want := `tool=greet args={"name":"ada"}`
	if res.LLMContent != want {
		t.Errorf("LLMContent = %q, want %q", res.LLMContent, want)
	}
}

func TestSubprocessTool_FailureIsDomainError(t *testing.T) {
	t.Parallel()

	call := writeScript(t, "call.sh", `echo "some partial output"; echo "boom" >&2; exit 3`)

	st := &subprocessTool{
		decl:        declaration{Name: "flaky"},
		callCommand: call,
		timeout:     DefaultTimeout,
	}

	res, err := st.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("subprocess failure surfaced as invocation error: %v", err)
	}
	if res.Err == "" {
		t.Fatal("no domain failure recorded")
	}
	for _, want := range []string{"exit 3", "some partial output", "boom"} {
		if !strings.Contains(res.Err, want) {
			t.Errorf("failure detail %q missing %q", res.Err, want)
		}
	}
}

func TestSubprocessTool_StderrIsDomainError(t *testing.T) {
	t.Parallel()

	// A clean exit with stderr output still counts as a failure.
	call := writeScript(t, "call.sh", `echo "oops" >&2; echo "fine"; exit 0`)

	st := &subprocessTool{
		decl:        declaration{Name: "noisy"},
		callCommand: call,
		timeout:     DefaultTimeout,
	}

	res, err := st.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Err == "" {
		t.Fatal("stderr output did not produce a domain failure")
	}
	for _, want := range []string{"exit 0", "oops", "fine"} {
		if !strings.Contains(res.Err, want) {
			t.Errorf("failure detail %q missing %q", res.Err, want)
		}
	}
}
