package parse

import (
	"testing"

	"github.com/armchr/junitmig/internal/model/ast"
	"go.uber.org/zap"
)

// Helper to parse Java code into a unit
func parseJava(t *testing.T, code string) *Unit {
	t.Helper()
	u, err := ParseUnit(0, "Test.java", []byte(code))
	if err != nil {
		t.Fatalf("Failed to parse Java code: %v", err)
	}
	t.Cleanup(u.Close)
	return u
}

// Helper to find the first node of a kind
func findNodeByKind(u *Unit, kind string) ast.NodeID {
	found := ast.InvalidNodeID
	u.Walk(u.Root(), func(id ast.NodeID, k string) bool {
		if found != ast.InvalidNodeID {
			return false
		}
		if k == kind {
			found = id
			return false
		}
		return true
	})
	return found
}

// Helper to find all nodes of a kind
func findAllNodesByKind(u *Unit, kind string) []ast.NodeID {
	var result []ast.NodeID
	u.Walk(u.Root(), func(id ast.NodeID, k string) bool {
		if k == kind {
			result = append(result, id)
		}
		return true
	})
	return result
}

func TestExtractAnnotations_MarkerAnnotation(t *testing.T) {
	code := `
public class MyTest {
    @Test
    public void method() {}
}
`
	u := parseJava(t, code)
	jv := NewJavaVisitor(zap.NewNop())

	methodNode := findNodeByKind(u, "method_declaration")
	if methodNode == ast.InvalidNodeID {
		t.Fatal("Could not find method_declaration node")
	}

	annotations := jv.ExtractAnnotations(u, methodNode)
	if len(annotations) != 1 {
		t.Fatalf("Expected 1 annotation, got %d", len(annotations))
	}
	if annotations[0].Name != "Test" {
		t.Errorf("Expected annotation name 'Test', got %v", annotations[0].Name)
	}
	if !annotations[0].Marker {
		t.Error("Expected marker annotation")
	}
	if annotations[0].Arguments != nil {
		t.Error("Marker annotation should not have arguments")
	}
}

func TestExtractAnnotations_WithStringValue(t *testing.T) {
	code := `
public class MyTest {
    @Ignore("not \"ready\" yet")
    public void skipped() {}
}
`
	u := parseJava(t, code)
	jv := NewJavaVisitor(zap.NewNop())

	annotations := jv.ExtractAnnotations(u, findNodeByKind(u, "method_declaration"))
	if len(annotations) != 1 {
		t.Fatalf("Expected 1 annotation, got %d", len(annotations))
	}
	value, ok := annotations[0].Arguments["value"]
	if !ok {
		t.Fatal("Expected value argument")
	}
	if got := u.Text(value); got != `"not \"ready\" yet"` {
		t.Errorf("Expected raw literal text, got %s", got)
	}
}

func TestExtractAnnotations_WithNamedArgs(t *testing.T) {
	code := `
public class MyTest {
    @Ignore(value = "later")
    @Rule
    public TemporaryFolder folder = new TemporaryFolder();
}
`
	u := parseJava(t, code)
	jv := NewJavaVisitor(zap.NewNop())

	annotations := jv.ExtractAnnotations(u, findNodeByKind(u, "field_declaration"))
	if len(annotations) != 2 {
		t.Fatalf("Expected 2 annotations, got %d", len(annotations))
	}
	if got := u.Text(annotations[0].Arguments["value"]); got != `"later"` {
		t.Errorf("Expected value '\"later\"', got %s", got)
	}
	if annotations[1].Name != "Rule" {
		t.Errorf("Expected second annotation 'Rule', got %s", annotations[1].Name)
	}
}

func TestExtractAnnotations_QualifiedName(t *testing.T) {
	code := `
public class MyTest {
    @org.junit.Test
    public void method() {}
}
`
	u := parseJava(t, code)
	jv := NewJavaVisitor(zap.NewNop())

	annotations := jv.ExtractAnnotations(u, findNodeByKind(u, "method_declaration"))
	if len(annotations) != 1 || annotations[0].Name != "org.junit.Test" {
		t.Fatalf("Expected qualified annotation name, got %+v", annotations)
	}
}

func TestExtractAnnotations_NoAnnotations(t *testing.T) {
	code := `
public class MyClass {
    public void method() {}
}
`
	u := parseJava(t, code)
	jv := NewJavaVisitor(zap.NewNop())

	if annotations := jv.ExtractAnnotations(u, findNodeByKind(u, "method_declaration")); annotations != nil {
		t.Errorf("Expected nil annotations, got %v", annotations)
	}
}

func TestLookupVariable_Scopes(t *testing.T) {
	code := `
public class Scopes {
    private static final int LIMIT = 10;
    private String name;

    void run(int count) {
        long name = 1L;
        for (String item : items) {
            check(item, name, count, LIMIT);
        }
    }
}
`
	u := parseJava(t, code)
	jv := NewJavaVisitor(zap.NewNop())

	call := findNodeByKind(u, "method_invocation")
	args := u.NamedChildren(u.ChildByField(call, "arguments"))
	if len(args) != 4 {
		t.Fatalf("Expected 4 arguments, got %d", len(args))
	}

	tests := []struct {
		arg    int
		typ    string
		field  bool
		static bool
	}{
		{0, "String", false, false},
		{1, "long", false, false},
		{2, "int", false, false},
		{3, "int", true, true},
	}
	for _, tt := range tests {
		v, ok := jv.LookupVariable(u, u.Text(args[tt.arg]), args[tt.arg])
		if !ok {
			t.Fatalf("Variable %s not found", u.Text(args[tt.arg]))
		}
		if v.Type != tt.typ || v.Field != tt.field || v.Static != tt.static {
			t.Errorf("LookupVariable(%s) = %+v", u.Text(args[tt.arg]), v)
		}
	}
}

func TestUnit_Declarations(t *testing.T) {
	code := `
package com.example;

import static org.junit.Assert.*;
import org.junit.rules.ExternalResource;

public class Outer extends Base implements Runnable, Comparable<Outer> {
    static class Inner extends ExternalResource {}
    enum Color { RED, GREEN }
}
`
	u := parseJava(t, code)

	if u.Package != "com.example" {
		t.Errorf("Package = %q", u.Package)
	}
	if len(u.Imports) != 2 {
		t.Fatalf("Expected 2 imports, got %d", len(u.Imports))
	}
	if !u.Imports[0].Static || !u.Imports[0].Wildcard || u.Imports[0].Key() != "org.junit.Assert.*" {
		t.Errorf("Unexpected first import %+v", u.Imports[0])
	}
	if u.Imports[1].Key() != "org.junit.rules.ExternalResource" {
		t.Errorf("Unexpected second import %+v", u.Imports[1])
	}

	if len(u.Types) != 3 {
		t.Fatalf("Expected 3 types, got %d", len(u.Types))
	}
	outer, inner, color := u.Types[0], u.Types[1], u.Types[2]
	if outer.QualifiedName != "com.example.Outer" || outer.Superclass != "Base" {
		t.Errorf("Unexpected outer %+v", outer)
	}
	if len(outer.Interfaces) != 2 || outer.Interfaces[1] != "Comparable<Outer>" {
		t.Errorf("Unexpected interfaces %v", outer.Interfaces)
	}
	if inner.QualifiedName != "com.example.Outer.Inner" || !inner.Static || inner.Outer != outer {
		t.Errorf("Unexpected inner %+v", inner)
	}
	if color.Kind != "enum" || len(color.EnumConstants) != 2 {
		t.Errorf("Unexpected enum %+v", color)
	}
}

func TestUnit_ArenaNavigation(t *testing.T) {
	u := parseJava(t, "class A { void m() { foo(1); } }")

	call := findNodeByKind(u, "method_invocation")
	if call == ast.InvalidNodeID {
		t.Fatal("method_invocation not found")
	}
	if u.Text(call) != "foo(1)" {
		t.Errorf("Text = %q", u.Text(call))
	}
	method := u.Ancestor(call, "method_declaration")
	if method == ast.InvalidNodeID || !u.Within(call, method) {
		t.Error("Expected call to be within method")
	}
	if u.Within(method, call) {
		t.Error("Method must not be within call")
	}
	if got := u.IDOf(u.Node(call)); got != call {
		t.Errorf("IDOf round trip = %d, want %d", got, call)
	}
	ref := u.Ref(call)
	if !ref.Valid() || ref.Generation != 1 {
		t.Errorf("Unexpected ref %v", ref)
	}

	if err := u.Reparse([]byte("class A { }")); err != nil {
		t.Fatal(err)
	}
	if u.Generation != 2 {
		t.Errorf("Generation after reparse = %d", u.Generation)
	}
	if findNodeByKind(u, "method_invocation") != ast.InvalidNodeID {
		t.Error("Reparsed tree should not contain the call")
	}
}
