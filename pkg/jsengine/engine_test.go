package jsengine

import (
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	engine := New()
	if engine == nil {
		t.Fatal("expected engine to be created")
	}
	if engine.runtime == nil {
		t.Fatal("expected runtime to be initialized")
	}
}

func TestEval(t *testing.T) {
	engine := New()

	tests := []struct {
		name     string
		script   string
		expected interface{}
	}{
		{"simple number", "1 + 2", int64(3)},
		{"string concat", "'hello' + ' ' + 'world'", "hello world"},
		{"boolean", "true && false", false},
		{"null coalescing", "null ?? 'default'", "default"},
		{"array length", "[1, 2, 3].length", int64(3)},
		{"object property", "({name: 'test'}).name", "test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Eval(tt.script)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, result, result)
			}
		})
	}
}

func TestSetVariable(t *testing.T) {
	engine := New()

	engine.SetVariable("username", "john")
	engine.SetVariable("count", 42)

	result, err := engine.EvalString("username")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "john" {
		t.Errorf("expected 'john', got %q", result)
	}

	result, err = engine.EvalString("count")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "42" {
		t.Errorf("expected '42', got %q", result)
	}
}

func TestSetEnv(t *testing.T) {
	engine := New()
	engine.SetVariable("USER", "explicit")
	engine.SetEnv(map[string]string{"USER": "from-env", "LOCALE": "de"})

	tests := []struct {
		expr string
		want string
	}{
		{"env.LOCALE", "de"},
		{"LOCALE", "de"},
		{"env.USER", "from-env"},
		{"USER", "explicit"}, // explicit variables win over env globals
	}
	for _, tt := range tests {
		got, err := engine.EvalString(tt.expr)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.expr, tt.want, got)
		}
	}
}

func TestExpandVariables(t *testing.T) {
	engine := New()

	engine.SetVariable("name", "John")
	engine.SetVariable("age", 30)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple var", "Hello ${name}", "Hello John"},
		{"expression", "Age: ${age + 5}", "Age: 35"},
		{"multiple vars", "${name} is ${age}", "John is 30"},
		{"no vars", "plain text", "plain text"},
		{"string concat", "${name + ' Doe'}", "John Doe"},
		{"nested braces", "${({a: 1}).a}", "1"},
		{"xpath literal", "//button[text()=${xpathLiteral(name)}]", "//button[text()='John']"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.ExpandVariables(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestExpandVariablesWithError(t *testing.T) {
	engine := New()

	_, err := engine.ExpandVariables("Value: ${undefinedVar}")
	if err == nil {
		t.Fatal("expected error for undefined variable")
	}
	if !strings.Contains(err.Error(), "undefinedVar") {
		t.Errorf("expected error to name the expression, got %v", err)
	}
}

func TestExpandVariablesUnterminated(t *testing.T) {
	engine := New()

	if _, err := engine.ExpandVariables("//a[@id='${id'"); err == nil {
		t.Error("expected error for unterminated expression")
	}
}

func TestHasExpressions(t *testing.T) {
	if !HasExpressions("//a[text()=${x}]") {
		t.Error("expected expression to be detected")
	}
	if HasExpressions("//a[@id='plain']") {
		t.Error("expected no expression")
	}
}

func TestConsoleLog(t *testing.T) {
	engine := New()

	// Just make sure it doesn't panic
	_, err := engine.Eval(`
		console.log("test message");
		console.error("error message");
		console.warn("warning message");
	`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJSON(t *testing.T) {
	engine := New()

	result, err := engine.EvalString(`json('{"id": "submit"}').id`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "submit" {
		t.Errorf("expected 'submit', got %q", result)
	}
}

func TestTemplateLiterals(t *testing.T) {
	engine := New()
	engine.SetVariable("row", 3)

	result, err := engine.EvalString("`//tr[${row}]/td`")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "//tr[3]/td" {
		t.Errorf("expected '//tr[3]/td', got %q", result)
	}
}

func TestEvalError(t *testing.T) {
	engine := New()

	_, err := engine.Eval("undefinedVariable.property")
	if err == nil {
		t.Error("expected error for undefined variable")
	}
}

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Save", "'Save'"},
		{"Don't", `"Don't"`},
		{`Say "hi"`, `'Say "hi"'`},
		{`It's "ok"`, `concat('It', "'", 's "ok"')`},
		{`'"`, `concat("'", '"')`},
	}
	for _, tt := range tests {
		if got := XPathLiteral(tt.in); got != tt.want {
			t.Errorf("XPathLiteral(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestCSSString(t *testing.T) {
	if got := CSSString(`a"b\c`); got != `"a\"b\\c"` {
		t.Errorf("CSSString = %s", got)
	}
}
