// Package sandbox compiles candidate algorithms into an isolated interpreter
// namespace that can only reach allow-listed standard-library packages.
//
// The allow-list is a best-effort guard, not a security boundary; isolation
// comes from running evaluations in separate worker processes.
package sandbox

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// PackageName is the package every candidate is compiled into.
const PackageName = "candidate"

const adapterPrefix = "sandbenchRun"

// ImportViolation reports a disallowed import. Nothing has been compiled
// when it is returned.
type ImportViolation struct {
	Path string
	Line int
}

func (e *ImportViolation) Error() string {
	return fmt.Sprintf("import of %q is not allowed (line %d)", e.Path, e.Line)
}

// CompileError reports source that does not parse or type-check.
type CompileError struct {
	Err error
}

func (e *CompileError) Error() string { return "compile error: " + e.Err.Error() }

func (e *CompileError) Unwrap() error { return e.Err }

type Options struct {
	// Allowed lists importable package paths, e.g. "math/rand".
	Allowed []string
	// Output receives anything the candidate prints. Defaults to io.Discard.
	Output io.Writer
	Seed   int64
}

// Algorithm runs one optimization: it is NewX(budget, dim).Optimize(f).
type Algorithm func(budget, dim int, f func([]float64) float64)

// Namespace is a compiled candidate.
type Namespace struct {
	interp  *interp.Interpreter
	rand    *Random
	symbols []string
	bound   map[string]Algorithm
}

// Prepare checks imports, compiles src and returns its namespace.
func Prepare(src string, opts Options) (*Namespace, error) {
	src = ensurePackage(src)
	if err := CheckImports(src, opts.Allowed); err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "candidate.go", src, parser.SkipObjectResolution)
	if err != nil {
		return nil, &CompileError{Err: err}
	}

	out := opts.Output
	if out == nil {
		out = io.Discard
	}
	ns := &Namespace{rand: NewRandom(opts.Seed), symbols: declared(file), bound: map[string]Algorithm{}}
	ns.interp = interp.New(interp.Options{Stdout: out, Stderr: out})
	if err := ns.interp.Use(ns.exports(opts.Allowed)); err != nil {
		return nil, fmt.Errorf("loading symbols: %w", err)
	}
	if err := ns.eval(rewritePackage(src, file, fset)); err != nil {
		return nil, &CompileError{Err: err}
	}
	return ns, nil
}

// CheckImports parses only the import block of src.
func CheckImports(src string, allowed []string) error {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "candidate.go", ensurePackage(src), parser.ImportsOnly)
	if err != nil {
		return &CompileError{Err: err}
	}
	for _, spec := range file.Imports {
		path, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return &CompileError{Err: err}
		}
		if !slices.Contains(allowed, path) {
			return &ImportViolation{Path: path, Line: fset.Position(spec.Pos()).Line}
		}
	}
	return nil
}

// Symbols lists the top-level functions and types the candidate declares.
func (ns *Namespace) Symbols() []string {
	return slices.Clone(ns.symbols)
}

// Reseed resets the random source seen by math/rand and math/rand/v2.
func (ns *Namespace) Reseed(seed int64) {
	ns.rand.Seed(seed)
}

// Factory binds the constructor NewName and its Optimize method. The
// adapter is declared as a named func: yaegi hands back func literals as
// *interface{} values that cannot be asserted to a func type.
func (ns *Namespace) Factory(name string) (Algorithm, error) {
	if !token.IsIdentifier("New"+name) || !token.IsExported("New"+name) {
		return nil, fmt.Errorf("invalid algorithm name %q", name)
	}
	if !slices.Contains(ns.symbols, "New"+name) {
		return nil, fmt.Errorf("constructor New%s not defined", name)
	}
	if alg, ok := ns.bound[name]; ok {
		return alg, nil
	}
	adapter := adapterPrefix + name
	decl := fmt.Sprintf(`func %s(budget, dim int, f func([]float64) float64) {
	%s.New%s(budget, dim).Optimize(f)
}`, adapter, PackageName, name)

	var v reflect.Value
	err := ns.guard(func() (err error) {
		if _, err = ns.interp.Eval(decl); err != nil {
			return err
		}
		v, err = ns.interp.Eval(adapter)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("binding New%s: %w", name, err)
	}
	fn, ok := v.Interface().(func(int, int, func([]float64) float64))
	if !ok {
		return nil, fmt.Errorf("binding New%s: unexpected adapter type %s", name, v.Type())
	}
	alg := Algorithm(fn)
	ns.bound[name] = alg
	return alg, nil
}

func (ns *Namespace) eval(src string) error {
	return ns.guard(func() error {
		_, err := ns.interp.Eval(src)
		return err
	})
}

// guard turns interpreter panics during compilation into errors.
func (ns *Namespace) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", r)
			}
		}
	}()
	return fn()
}

// exports selects the allow-listed stdlib symbol tables and swaps the
// package-level random functions for the seeded source.
func (ns *Namespace) exports(allowed []string) interp.Exports {
	out := interp.Exports{}
	for key, syms := range stdlib.Symbols {
		i := strings.LastIndex(key, "/")
		if i < 0 || !slices.Contains(allowed, key[:i]) {
			continue
		}
		table := make(map[string]reflect.Value, len(syms))
		for k, v := range syms {
			table[k] = v
		}
		var version string
		switch key[:i] {
		case "math/rand":
			version = "v1"
		case "math/rand/v2":
			version = "v2"
		}
		if version != "" {
			for k, v := range ns.rand.overrides(version) {
				if _, ok := table[k]; ok {
					table[k] = v
				}
			}
		}
		out[key] = table
	}
	return out
}

// rewritePackage forces the package clause to PackageName.
func rewritePackage(src string, file *ast.File, fset *token.FileSet) string {
	start := fset.Position(file.Name.Pos()).Offset
	end := fset.Position(file.Name.End()).Offset
	return src[:start] + PackageName + src[end:]
}

func declared(file *ast.File) []string {
	var names []string
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv == nil {
				names = append(names, d.Name.Name)
			}
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				names = append(names, spec.(*ast.TypeSpec).Name.Name)
			}
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// ErrNoConstructor is returned by InferName for source without a NewX func.
var ErrNoConstructor = errors.New("no NewX constructor found")

// InferName returns X for the first top-level func NewX in src.
func InferName(src string) (string, error) {
	file, err := parser.ParseFile(token.NewFileSet(), "candidate.go", ensurePackage(src), parser.SkipObjectResolution)
	if err != nil {
		return "", &CompileError{Err: err}
	}
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil {
			continue
		}
		if name, ok := strings.CutPrefix(fn.Name.Name, "New"); ok && token.IsExported(name) {
			return name, nil
		}
	}
	return "", ErrNoConstructor
}

// ensurePackage prepends a package clause on the first line when src has
// none, so reported line numbers still match the submitted code.
func ensurePackage(src string) string {
	if _, err := parser.ParseFile(token.NewFileSet(), "", src, parser.PackageClauseOnly); err == nil {
		return src
	}
	return "package " + PackageName + "; " + src
}
