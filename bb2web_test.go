package bb2web_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"bb2web"
	"bb2web/internal/diag"
)

func transpileFail(t *testing.T, source string) diag.Diagnostic {
	t.Helper()
	_, err := bb2web.Transpile(source, bb2web.Options{})
	if err == nil {
		t.Fatalf("expected an error for %q", source)
	}
	var d diag.Diagnostic
	if !errors.As(err, &d) {
		t.Fatalf("expected a diag.Diagnostic, got %T: %v", err, err)
	}
	return d
}

func TestTranspileTypeScript(t *testing.T) {
	code, err := bb2web.Transpile("Graphics 320, 240\nCls\nFlip", bb2web.Options{})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`import { rt } from "./bb_runtime";`,
		"(function (rt: any) {",
		"rt.Graphics(320, 240);",
		"rt.Cls();",
		"rt.Flip();",
		"})(rt);",
	} {
		if !strings.Contains(code, want) {
			t.Errorf("output lacks %q:\n%s", want, code)
		}
	}
}

func TestTranspileJavaScript(t *testing.T) {
	code, err := bb2web.Transpile("Cls", bb2web.Options{Dialect: bb2web.JavaScript})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(code, "import") || strings.Contains(code, ": any") {
		t.Errorf("JavaScript output carries TypeScript syntax:\n%s", code)
	}
	if !strings.Contains(code, "})(globalThis.rt);") {
		t.Errorf("JavaScript output does not read the global runtime:\n%s", code)
	}
}

func TestTranspileEmptySource(t *testing.T) {
	code, err := bb2web.Transpile("", bb2web.Options{Dialect: bb2web.JavaScript})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(code, "rt.") {
		t.Errorf("empty program calls the runtime:\n%s", code)
	}
}

func TestFaultClasses(t *testing.T) {
	tests := []struct {
		source string
		class  diag.Class
		code   string
		line   int
	}{
		{"Cls\nx = 1 @ 2", diag.Lexical, diag.CodeUnexpectedChar, 2},
		{"x = * 2", diag.Syntax, diag.CodeUnexpectedToken, 1},
		{"Cls\nIf x Flip", diag.Syntax, diag.CodeExpected, 2},
		{"If x Then\nCls\nWend", diag.Syntax, diag.CodeBlockTerminator, 3},
		{"Dim a(3)\na(1, 2) = 3", diag.Construction, diag.CodeInvalidTree, 2},
		{"Cls\n\nLine 1, 2", diag.Arity, diag.CodeArity, 3},
	}
	for _, tt := range tests {
		d := transpileFail(t, tt.source)
		if d.Class != tt.class || d.Code != tt.code || d.Line() != tt.line {
			t.Errorf("%q: got %s %s at line %d, want %s %s at line %d",
				tt.source, d.Class, d.Code, d.Line(), tt.class, tt.code, tt.line)
		}
	}
}

func TestCompileWarnings(t *testing.T) {
	res, err := bb2web.Compile("Cls\nText 0, 0, \"open", bb2web.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Code != diag.CodeUnterminatedText {
		t.Fatalf("warnings = %v", res.Warnings)
	}
	if res.Warnings[0].Severity != diag.Warning {
		t.Errorf("severity = %s", res.Warnings[0].Severity)
	}
}

func TestParseDialect(t *testing.T) {
	for name, want := range map[string]bb2web.Dialect{
		"ts": bb2web.TypeScript, "TypeScript": bb2web.TypeScript,
		"js": bb2web.JavaScript, "javascript": bb2web.JavaScript,
	} {
		got, err := bb2web.ParseDialect(name)
		if err != nil || got != want {
			t.Errorf("ParseDialect(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := bb2web.ParseDialect("coffee"); err == nil {
		t.Error("expected an error for an unknown dialect")
	}
}

func TestConcurrentTranspile(t *testing.T) {
	source := "Graphics 64, 64\nSelect k\nCase 1\nCls\nEnd Select\nSelect k\nDefault\nFlip\nEnd Select"
	want, err := bb2web.Transpile(source, bb2web.Options{})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = bb2web.Transpile(source, bb2web.Options{})
		}(i)
	}
	wg.Wait()
	for i, got := range results {
		if got != want {
			t.Errorf("result %d differs:\n%s", i, got)
		}
	}
}
