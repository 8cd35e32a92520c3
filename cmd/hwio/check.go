package main

import (
	"fmt"
	"hash/fnv"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/packages"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/topo"

	"omibyte.io/hwio/check"
	"omibyte.io/hwio/targets"
)

var (
	checkOpts = struct {
		chip     string
		wordBits int
	}{}

	checkCmd = &cobra.Command{
		Use:   "check [packages]",
		Short: "Statically check linker-set and register usage",
		Long: `Load the named Go packages and report registrations that would not survive
compilation for an embedded target: non-constant payloads, payload types
without a fixed layout, registrations outside package-level variable
initializers, misaligned constant register addresses, and 64-bit handles on
32-bit-word targets. Pass --chip to take the word size from the target
catalog.`,
		Run: func(cmd *cobra.Command, args []string) {
			wordBits := checkOpts.wordBits
			if len(checkOpts.chip) > 0 {
				target, err := targets.All().FindByChip(checkOpts.chip)
				if err != nil {
					fatal(err)
				}
				wordBits = target.WordBits
			}
			check.WordBits = wordBits

			patterns := args
			if len(patterns) == 0 {
				patterns = []string{"./..."}
			}

			config := packages.Config{
				Mode: packages.NeedName | packages.NeedFiles | packages.NeedImports |
					packages.NeedDeps | packages.NeedTypes | packages.NeedSyntax |
					packages.NeedTypesInfo,
			}
			pkgs, err := packages.Load(&config, patterns...)
			if err != nil {
				fatal(err)
			}
			if packages.PrintErrors(pkgs) > 0 {
				os.Exit(1)
			}

			count := 0
			for _, pkg := range orderPackages(pkgs) {
				count += checkPackage(pkg)
			}
			if count > 0 {
				fmt.Printf("%d problems\n", count)
				os.Exit(1)
			}
		},
	}
)

func init() {
	checkCmd.Flags().StringVar(&checkOpts.chip, "chip", "", "target chip to check against")
	checkCmd.Flags().IntVar(&checkOpts.wordBits, "wordbits", 64, "native word size of the build target in bits")
	rootCmd.AddCommand(checkCmd)
}

type pkgNode struct {
	pkg *packages.Package
	id  int64
}

func (n *pkgNode) ID() int64 {
	return n.id
}

// orderPackages sorts the loaded packages so that dependencies come before
// their dependents, keeping diagnostics in a stable bottom-up order.
func orderPackages(pkgs []*packages.Package) []*packages.Package {
	g := multi.NewDirectedGraph()
	nodes := map[string]*pkgNode{}

	makeNode := func(pkg *packages.Package) *pkgNode {
		if node, ok := nodes[pkg.PkgPath]; ok {
			return node
		}
		hasher := fnv.New64()
		hasher.Write([]byte(pkg.PkgPath))
		node := &pkgNode{pkg: pkg, id: int64(hasher.Sum64())}
		nodes[pkg.PkgPath] = node
		g.AddNode(node)
		return node
	}

	loaded := map[string]bool{}
	for _, pkg := range pkgs {
		loaded[pkg.PkgPath] = true
	}
	for _, pkg := range pkgs {
		to := makeNode(pkg)
		for path, imported := range pkg.Imports {
			if !loaded[path] {
				continue
			}
			g.SetLine(g.NewLine(makeNode(imported), to))
		}
	}

	sorted, err := topo.Sort(g)
	if err != nil {
		// Import cycles cannot occur in valid Go programs; fall back to the
		// load order.
		return pkgs
	}

	ordered := make([]*packages.Package, 0, len(pkgs))
	for _, node := range sorted {
		ordered = append(ordered, node.(*pkgNode).pkg)
	}
	return ordered
}

func checkPackage(pkg *packages.Package) int {
	count := 0
	pass := &analysis.Pass{
		Analyzer:   check.Analyzer,
		Fset:       pkg.Fset,
		Files:      pkg.Syntax,
		Pkg:        pkg.Types,
		TypesInfo:  pkg.TypesInfo,
		TypesSizes: pkg.TypesSizes,
		Report: func(d analysis.Diagnostic) {
			fmt.Printf("%s: %s\n", pkg.Fset.Position(d.Pos), d.Message)
			count++
		},
	}
	if _, err := pass.Analyzer.Run(pass); err != nil {
		fatal(err)
	}
	return count
}
