package main

import (
	"go/ast"
	"go/token"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(Analyzer)
}

// Analyzer запрещает panic, os.Exit и log.Fatal вне функции main пакета main.
// Сервер телеметрии завершается только через корректный shutdown,
// внезапные выходы из библиотечного кода ломают финальную генерацию отчёта.
var Analyzer = &analysis.Analyzer{
	Name: "exitcheck",
	Doc:  "проверяет использование panic, os.Exit и log.Fatal вне main пакета main",
	Run:  run,
}

type span struct {
	pos token.Pos
	end token.Pos
}

func run(pass *analysis.Pass) (interface{}, error) {
	mains := mainFuncSpans(pass)

	for _, file := range pass.Files {
		ast.Inspect(file, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}

			if isPanicCall(call) {
				pass.Reportf(call.Pos(), "использование встроенной функции panic")
				return true
			}

			pkgName, funcName, ok := selectorParts(call)
			if !ok {
				return true
			}

			if !isExitCall(pkgName, funcName) {
				return true
			}

			if !insideAny(mains, call) {
				pass.Reportf(call.Pos(),
					"вызов %s.%s вне функции main пакета main",
					pkgName, funcName)
			}

			return true
		})
	}

	return nil, nil
}

// mainFuncSpans возвращает диапазоны функций main во всех файлах пакета main.
// Для других пакетов список пуст: там запрещены все вызовы.
func mainFuncSpans(pass *analysis.Pass) []span {
	if pass.Pkg.Name() != "main" {
		return nil
	}

	var spans []span
	for _, file := range pass.Files {
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok {
				continue
			}
			if fn.Name.Name == "main" && fn.Recv == nil {
				spans = append(spans, span{pos: fn.Pos(), end: fn.End()})
			}
		}
	}

	return spans
}

func isPanicCall(call *ast.CallExpr) bool {
	ident, ok := call.Fun.(*ast.Ident)
	return ok && ident.Name == "panic"
}

func selectorParts(call *ast.CallExpr) (pkg, fn string, ok bool) {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return "", "", false
	}

	x, ok := sel.X.(*ast.Ident)
	if !ok {
		return "", "", false
	}

	return x.Name, sel.Sel.Name, true
}

func isExitCall(pkgName, funcName string) bool {
	if pkgName == "os" && funcName == "Exit" {
		return true
	}
	if pkgName == "log" {
		switch funcName {
		case "Fatal", "Fatalf", "Fatalln":
			return true
		}
	}
	return false
}

func insideAny(spans []span, call *ast.CallExpr) bool {
	for _, s := range spans {
		if s.pos <= call.Pos() && call.End() <= s.end {
			return true
		}
	}
	return false
}
