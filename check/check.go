// Package check statically verifies uses of the hwio primitives that cannot
// be rejected by the Go type system alone. It reports:
//
//   - linker-set registrations whose payload is not constant-foldable or
//     whose type has no fixed, self-contained layout,
//   - registrations appearing outside a package-level variable initializer,
//     including inside generic functions where one declaration would
//     instantiate into zero or more storage symbols,
//   - section names that are not constant strings,
//   - volatile register handles constructed at constant addresses misaligned
//     for their width, and 64-bit handles on 32-bit-word targets.
//
// Misuse that only manifests at runtime (handles over unmapped addresses,
// heterogeneous sections) is out of reach of this checker and stays the
// caller's responsibility.
package check

import (
	"go/ast"
	"go/constant"
	"go/types"
	"strings"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/types/typeutil"
)

var Analyzer = &analysis.Analyzer{
	Name: "hwio",
	Doc:  "check linker-set registrations and volatile register handles",
	Run:  run,
}

// WordBits is the native word size of the build target, settable via the
// -wordbits flag. Register64 construction is reported when it is 32.
var WordBits int

func init() {
	Analyzer.Flags.IntVar(&WordBits, "wordbits", 64, "native word size of the build target in bits")
}

func run(pass *analysis.Pass) (interface{}, error) {
	for _, file := range pass.Files {
		for _, decl := range file.Decls {
			switch decl := decl.(type) {
			case *ast.GenDecl:
				checkTopLevelDecl(pass, decl)
			case *ast.FuncDecl:
				checkFuncDecl(pass, decl)
			}
		}
	}
	return nil, nil
}

// checkTopLevelDecl walks a package-level const/var/type declaration. Calls
// found directly in a var initializer are in a valid registration context;
// calls nested inside a function literal are not, since the literal's body is
// function-local.
func checkTopLevelDecl(pass *analysis.Pass, decl *ast.GenDecl) {
	ast.Inspect(decl, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			checkBody(pass, n.Body, "a function literal")
			return false
		case *ast.CallExpr:
			checkCall(pass, n, "")
		}
		return true
	})
}

func checkFuncDecl(pass *analysis.Pass, decl *ast.FuncDecl) {
	context := "function " + decl.Name.Name
	if isGeneric(decl) {
		context = "generic function " + decl.Name.Name
	}
	checkBody(pass, decl.Body, context)
}

func checkBody(pass *analysis.Pass, body *ast.BlockStmt, context string) {
	if body == nil {
		return
	}
	ast.Inspect(body, func(n ast.Node) bool {
		if call, ok := n.(*ast.CallExpr); ok {
			checkCall(pass, call, context)
		}
		return true
	})
}

func isGeneric(decl *ast.FuncDecl) bool {
	if decl.Type.TypeParams != nil && len(decl.Type.TypeParams.List) > 0 {
		return true
	}
	// A method on a generic type is itself instantiated per type argument.
	if decl.Recv != nil {
		for _, field := range decl.Recv.List {
			expr := field.Type
			if star, ok := expr.(*ast.StarExpr); ok {
				expr = star.X
			}
			if _, ok := expr.(*ast.IndexExpr); ok {
				return true
			}
			if _, ok := expr.(*ast.IndexListExpr); ok {
				return true
			}
		}
	}
	return false
}

// checkCall dispatches on the callee. context is empty when the call sits in
// a package-level variable initializer.
func checkCall(pass *analysis.Pass, call *ast.CallExpr, context string) {
	callee := typeutil.Callee(pass.TypesInfo, call)
	fn, ok := callee.(*types.Func)
	if !ok {
		return
	}

	switch {
	case isFunc(fn, "linkset", "Register"):
		checkRegister(pass, call, context)
	case isFunc(fn, "linkset", "NewSet"):
		checkNewSet(pass, call)
	case isFunc(fn, "volatile", "NewRegister8"):
		checkHandleAddr(pass, call, 1)
	case isFunc(fn, "volatile", "NewRegister16"):
		checkHandleAddr(pass, call, 2)
	case isFunc(fn, "volatile", "NewRegister32"):
		checkHandleAddr(pass, call, 4)
	case isFunc(fn, "volatile", "NewRegister64"):
		if WordBits == 32 {
			pass.Reportf(call.Pos(), "64-bit registers are unavailable on a 32-bit-word target")
		}
		checkHandleAddr(pass, call, 8)
	}
}

// isFunc reports whether fn is the named function or method of one of this
// module's packages.
func isFunc(fn *types.Func, pkg, name string) bool {
	if fn.Name() != name || fn.Pkg() == nil {
		return false
	}
	path := fn.Pkg().Path()
	return path == "omibyte.io/hwio/"+pkg || path == pkg || strings.HasSuffix(path, "/"+pkg)
}

func checkRegister(pass *analysis.Pass, call *ast.CallExpr, context string) {
	if context != "" {
		if strings.HasPrefix(context, "generic") {
			pass.Reportf(call.Pos(), "linker-set registration in %s: a generic context instantiates into zero or more storage symbols; register from a package-level variable initializer instead", context)
		} else {
			pass.Reportf(call.Pos(), "linker-set registration in %s: records must be registered from a package-level variable initializer", context)
		}
	}
	if len(call.Args) != 1 {
		return
	}
	payload := call.Args[0]

	if cause := nonConstant(pass, payload); cause != nil {
		pass.Reportf(cause.Pos(), "linker-set payload is not constant-foldable: %s requires runtime evaluation", types.ExprString(cause))
	}
	if tv, ok := pass.TypesInfo.Types[payload]; ok && tv.Type != nil {
		if bad := nonFixedLayout(tv.Type); bad != nil {
			pass.Reportf(payload.Pos(), "linker-set payload type %s does not have a fixed, self-contained layout (%s)", tv.Type, bad)
		}
	}
}

func checkNewSet(pass *analysis.Pass, call *ast.CallExpr) {
	if len(call.Args) < 1 {
		return
	}
	section := call.Args[0]
	tv, ok := pass.TypesInfo.Types[section]
	if !ok || tv.Value == nil || tv.Value.Kind() != constant.String {
		pass.Reportf(section.Pos(), "section name must be a constant string")
	}
}

// nonConstant returns the outermost subexpression of expr that prevents
// constant folding, or nil when expr folds completely. Composite literals of
// constants fold field by field; everything the type checker does not already
// evaluate to a constant.Value is rejected.
func nonConstant(pass *analysis.Pass, expr ast.Expr) ast.Expr {
	tv, ok := pass.TypesInfo.Types[expr]
	if ok && tv.Value != nil {
		return nil
	}

	switch e := expr.(type) {
	case *ast.ParenExpr:
		return nonConstant(pass, e.X)
	case *ast.CompositeLit:
		for _, elt := range e.Elts {
			value := elt
			if kv, ok := elt.(*ast.KeyValueExpr); ok {
				value = kv.Value
			}
			if cause := nonConstant(pass, value); cause != nil {
				return cause
			}
		}
		return nil
	case *ast.CallExpr:
		// A conversion folds when its operand does.
		if tv, ok := pass.TypesInfo.Types[e.Fun]; ok && tv.IsType() && len(e.Args) == 1 {
			return nonConstant(pass, e.Args[0])
		}
		return e
	default:
		return expr
	}
}

// nonFixedLayout mirrors linkset's layout rules over go/types, returning the
// offending type or nil.
func nonFixedLayout(t types.Type) types.Type {
	switch u := t.Underlying().(type) {
	case *types.Basic:
		switch u.Kind() {
		case types.Bool,
			types.Int, types.Int8, types.Int16, types.Int32, types.Int64,
			types.Uint, types.Uint8, types.Uint16, types.Uint32, types.Uint64,
			types.Uintptr, types.Float32, types.Float64,
			types.Complex64, types.Complex128,
			types.UntypedBool, types.UntypedInt, types.UntypedRune,
			types.UntypedFloat, types.UntypedComplex:
			return nil
		}
		return t
	case *types.Array:
		return nonFixedLayout(u.Elem())
	case *types.Struct:
		for i := 0; i < u.NumFields(); i++ {
			if bad := nonFixedLayout(u.Field(i).Type()); bad != nil {
				return bad
			}
		}
		return nil
	default:
		return t
	}
}

// checkHandleAddr verifies the alignment of constant handle addresses.
// Non-constant addresses are accepted unchecked; construction never validates
// at runtime either.
func checkHandleAddr(pass *analysis.Pass, call *ast.CallExpr, width uint64) {
	if len(call.Args) != 1 || width == 1 {
		return
	}
	tv, ok := pass.TypesInfo.Types[call.Args[0]]
	if !ok || tv.Value == nil {
		return
	}
	addr, ok := constant.Uint64Val(constant.ToInt(tv.Value))
	if !ok {
		return
	}
	if addr%width != 0 {
		pass.Reportf(call.Args[0].Pos(), "address %#x is not %d-byte aligned for a %d-bit register; using this handle is undefined behavior", addr, width, width*8)
	}
}
