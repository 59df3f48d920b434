// Package fieldgen generates entity structs and typed predicate fields for
// inspected tables.
package fieldgen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/syssam/sqlcore/schema"
)

const predicatePkg = "github.com/syssam/sqlcore/predicate"

// Config configures a Generator.
type Config struct {
	// Package is the name of the generated package.
	Package string
	// OutDir is the directory the files are written to.
	OutDir string
	// Workers bounds the files generated in parallel. Defaults to GOMAXPROCS.
	Workers int
	// Naming derives Go identifiers. Defaults to schema.NewNaming().
	Naming *schema.Naming
}

// Generator writes one file per table.
type Generator struct {
	cfg Config

	mu      sync.Mutex
	written []string
}

// New returns a generator.
func New(cfg Config) (*Generator, error) {
	if cfg.Package == "" {
		return nil, fmt.Errorf("fieldgen: package name is required")
	}
	if cfg.OutDir == "" {
		cfg.OutDir = "."
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Naming == nil {
		cfg.Naming = schema.NewNaming()
	}
	return &Generator{cfg: cfg}, nil
}

// Generate writes the files of tables and returns their paths, sorted.
func (g *Generator) Generate(ctx context.Context, tables []*schema.Table) ([]string, error) {
	if err := os.MkdirAll(g.cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for _, t := range tables {
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return g.generateFile(t)
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := append([]string(nil), g.written...)
	sort.Strings(out)
	return out, nil
}

func (g *Generator) generateFile(t *schema.Table) error {
	var buf bytes.Buffer
	if err := g.File(t).Render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", t.Name(), err)
	}
	name := strings.ReplaceAll(strings.ToLower(t.Name()), ".", "_") + ".go"
	path := filepath.Join(g.cfg.OutDir, name)
	formatted, err := imports.Process(path, buf.Bytes(), nil)
	if err != nil {
		return fmt.Errorf("format %s: %w", name, err)
	}
	if err := os.WriteFile(path, formatted, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	g.mu.Lock()
	g.written = append(g.written, path)
	g.mu.Unlock()
	return nil
}

// File returns the generated file of a table: the entity struct, its
// TableName method and one predicate field per column.
func (g *Generator) File(t *schema.Table) *jen.File {
	entity := g.cfg.Naming.Entity(t.Name())
	f := jen.NewFile(g.cfg.Package)
	f.HeaderComment("Code generated by sqlcore. DO NOT EDIT.")

	fields := make([]field, 0, len(t.Columns()))
	seen := make(map[string]int)
	for _, c := range t.Columns() {
		name := g.cfg.Naming.Pascal(c.Physical)
		if seen[name]++; seen[name] > 1 {
			name = fmt.Sprintf("%s%d", name, seen[name])
		}
		fields = append(fields, field{name: name, column: c, typ: goType(c.DBType)})
	}

	f.Commentf("%s maps rows of the %q table.", entity, t.Name())
	f.Type().Id(entity).StructFunc(func(s *jen.Group) {
		for _, fd := range fields {
			s.Id(fd.name).Add(fd.typ.code(fd.column.Nullable)).Tag(map[string]string{"db": tag(fd.column)})
		}
	})
	f.Line()
	f.Commentf("TableName returns the table of %s.", entity)
	f.Func().Params(jen.Id(entity)).Id("TableName").Params().String().Block(
		jen.Return(jen.Lit(t.Name())),
	)
	f.Line()
	f.Commentf("Predicate fields of %s.", entity)
	f.Var().DefsFunc(func(d *jen.Group) {
		for _, fd := range fields {
			var ctor jen.Code
			if fd.typ.kind == kindString {
				ctor = jen.Qual(predicatePkg, "StringField").Types(jen.Id(entity))
			} else {
				ctor = jen.Qual(predicatePkg, "Field").Types(jen.Id(entity), fd.typ.code(false))
			}
			d.Id(entity + fd.name).Op("=").Add(ctor).Call(jen.Lit(fd.column.Physical))
		}
	})
	return f
}

type field struct {
	name   string
	column schema.Column
	typ    goTyp
}

func tag(c schema.Column) string {
	opts := []string{c.Physical}
	if c.PrimaryKey {
		opts = append(opts, "pk")
	}
	if c.Identity {
		opts = append(opts, "identity")
	}
	return strings.Join(opts, ",")
}
