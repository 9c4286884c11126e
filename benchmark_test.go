// Benchmarks for the jitq pipeline.
//
// Run all benchmarks:
//
//	go test -bench=. -benchmem .
//
// Run specific category:
//
//	go test -bench=BenchmarkParse -benchmem .
//	go test -bench=BenchmarkApply -benchmem .
package jitq_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/sandrolain/jitq/pkg/compiler"
	"github.com/sandrolain/jitq/pkg/document"
	"github.com/sandrolain/jitq/pkg/driver"
	"github.com/sandrolain/jitq/pkg/functions"
	"github.com/sandrolain/jitq/pkg/parser"
)

// ---------------------------------------------------------------------------
// Test data
// ---------------------------------------------------------------------------

var (
	// smallData - ~100 bytes
	smallData = map[string]any{
		"name":   "John Doe",
		"age":    30,
		"active": true,
		"tags":   []any{"a", "b", "c"},
	}

	// mediumData - ~1 KB, 10 users
	mediumData any

	// largeData - ~10 KB, 100 users
	largeData any

	// serialized NDJSON stream of 1000 medium documents
	mediumStream []byte
)

func init() {
	departments := []string{"Engineering", "Sales", "Marketing", "HR", "Finance"}

	buildDataset := func(n int) any {
		users := make([]any, n)
		for i := 0; i < n; i++ {
			users[i] = map[string]any{
				"id":         i + 1,
				"name":       fmt.Sprintf("User%d", i+1),
				"department": departments[i%5],
				"projects": []any{
					fmt.Sprintf("Project%d", i),
					fmt.Sprintf("Project%d", i+1),
				},
			}
		}
		return map[string]any{"users": users}
	}

	mediumData = buildDataset(10)
	largeData = buildDataset(100)

	line, _ := json.Marshal(mediumData)
	var buf bytes.Buffer
	for i := 0; i < 1000; i++ {
		buf.Write(line)
		buf.WriteByte('\n')
	}
	mediumStream = buf.Bytes()
}

func newBenchDriver(b *testing.B, opts ...driver.Option) *driver.Driver {
	b.Helper()
	opts = append([]driver.Option{
		driver.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		driver.WithDiagnostics(io.Discard),
	}, opts...)
	d, err := driver.New(context.Background(), opts...)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { d.Close(context.Background()) })
	return d
}

func mustCompilePath(b *testing.B, d *driver.Driver, src string) *driver.Program {
	b.Helper()
	p, err := d.CompilePath(context.Background(), src)
	if err != nil {
		b.Fatalf("CompilePath(%q): %v", src, err)
	}
	return p
}

func runApply(b *testing.B, p *driver.Program, data any) {
	b.Helper()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		res, err := p.Apply(ctx, data)
		if err != nil {
			b.Fatal(err)
		}
		if !res.OK() {
			b.Fatalf("navigation failed: %v", res.Code)
		}
	}
}

// ---------------------------------------------------------------------------
// Parser benchmarks
// ---------------------------------------------------------------------------

func BenchmarkParsePath(b *testing.B) {
	src := ".users[42].projects[1]"
	for i := 0; i < b.N; i++ {
		if _, err := parser.ParsePath(src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkParseExpressions(b *testing.B) {
	src := "let a = 3; let b = (a + 4) * 6; let a = b / 2 - a; a * b + 1"
	for i := 0; i < b.N; i++ {
		if _, err := parser.ParseExpressions(src); err != nil {
			b.Fatal(err)
		}
	}
}

// ---------------------------------------------------------------------------
// Code generation
// ---------------------------------------------------------------------------

func BenchmarkCodegenPath(b *testing.B) {
	path, err := parser.ParsePath(".users[42].projects[1]")
	if err != nil {
		b.Fatal(err)
	}
	c := compiler.New(functions.Standard(), compiler.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.CompilePath(path); err != nil {
			b.Fatal(err)
		}
	}
}

// ---------------------------------------------------------------------------
// Full compilation (parse, lower, finalize)
// ---------------------------------------------------------------------------

func BenchmarkCompilePath_Compiler(b *testing.B) {
	d := newBenchDriver(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := mustCompilePath(b, d, ".users[3].name")
		p.Close(ctx)
	}
}

func BenchmarkCompilePath_Interpreter(b *testing.B) {
	d := newBenchDriver(b, driver.WithInterpreter(true))
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := mustCompilePath(b, d, ".users[3].name")
		p.Close(ctx)
	}
}

func BenchmarkCompilePath_Cached(b *testing.B) {
	d := newBenchDriver(b, driver.WithCaching(true))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mustCompilePath(b, d, ".users[3].name")
	}
}

// ---------------------------------------------------------------------------
// Apply
// ---------------------------------------------------------------------------

func BenchmarkApplyRoot_Small(b *testing.B) {
	d := newBenchDriver(b)
	runApply(b, mustCompilePath(b, d, "."), smallData)
}

func BenchmarkApplyKey_Small(b *testing.B) {
	d := newBenchDriver(b)
	runApply(b, mustCompilePath(b, d, ".tags[2]"), smallData)
}

func BenchmarkApplyNested_Medium(b *testing.B) {
	d := newBenchDriver(b)
	runApply(b, mustCompilePath(b, d, ".users[7].projects[1]"), mediumData)
}

func BenchmarkApplyNested_Large(b *testing.B) {
	d := newBenchDriver(b)
	runApply(b, mustCompilePath(b, d, ".users[99].projects[1]"), largeData)
}

func BenchmarkApplyNested_Large_Interpreter(b *testing.B) {
	d := newBenchDriver(b, driver.WithInterpreter(true))
	runApply(b, mustCompilePath(b, d, ".users[99].projects[1]"), largeData)
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

func BenchmarkRunStream_Medium(b *testing.B) {
	d := newBenchDriver(b)
	p := mustCompilePath(b, d, ".users[3].name")
	ctx := context.Background()
	b.SetBytes(int64(len(mediumStream)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.RunStream(ctx, p, bytes.NewReader(mediumStream), io.Discard); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode_Medium(b *testing.B) {
	line, _ := json.Marshal(mediumData)
	b.SetBytes(int64(len(line)))
	for i := 0; i < b.N; i++ {
		if _, err := document.Decode(line); err != nil {
			b.Fatal(err)
		}
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func BenchmarkEvalArithmetic(b *testing.B) {
	d := newBenchDriver(b)
	ctx := context.Background()
	p, err := d.CompileExpressions(ctx, "let a = 3; let a = 4 + a; a * 6")
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := p.Eval(ctx); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCompileAndEval(b *testing.B) {
	d := newBenchDriver(b)
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p, err := d.CompileExpressions(ctx, "7 + 3*2")
		if err != nil {
			b.Fatal(err)
		}
		if _, err := p.Eval(ctx); err != nil {
			b.Fatal(err)
		}
		p.Close(ctx)
	}
}
