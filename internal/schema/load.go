package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
)

// Registry holds compiled classes by name.
type Registry struct {
	classes map[string]*Class
}

// NewRegistry creates a registry holding classes. A later class replaces an
// earlier one of the same name.
func NewRegistry(classes ...*Class) *Registry {
	r := &Registry{classes: make(map[string]*Class, len(classes))}
	for _, c := range classes {
		r.classes[c.Name] = c
	}
	return r
}

// Class returns the named class.
func (r *Registry) Class(name string) (*Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Names returns the class names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NewObject creates an unregistered object of the named class.
func (r *Registry) NewObject(class string) (*Object, error) {
	c, ok := r.classes[class]
	if !ok {
		return nil, fmt.Errorf("unknown class %q", class)
	}
	return c.NewObject(), nil
}

// LoadClasses compiles every class declared in path, which is either a
// single .cue file or a directory holding one CUE package.
func LoadClasses(path string) (*Registry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load classes: %w", err)
	}

	ctx := cuecontext.New()
	var value cue.Value
	if info.IsDir() {
		instances := load.Instances([]string{"."}, &load.Config{Dir: path})
		if len(instances) == 0 {
			return nil, fmt.Errorf("load classes: no CUE instances in %s", path)
		}
		if err := instances[0].Err; err != nil {
			return nil, fmt.Errorf("load classes: %w", err)
		}
		value = ctx.BuildInstance(instances[0])
	} else {
		if !strings.EqualFold(filepath.Ext(path), ".cue") {
			return nil, fmt.Errorf("load classes: %s is not a .cue file", path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load classes: %w", err)
		}
		value = ctx.CompileBytes(data, cue.Filename(path))
	}

	return CompileClasses(value)
}

// CompileClasses compiles every class under the class key of v.
func CompileClasses(v cue.Value) (*Registry, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	classesVal := v.LookupPath(cue.ParsePath("class"))
	if !classesVal.Exists() {
		return nil, &CompileError{Field: "class", Message: "no classes declared", Pos: v.Pos()}
	}

	iter, err := classesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var classes []*Class
	for iter.Next() {
		c, err := CompileClass(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("class.%s: %w", iter.Label(), err)
		}
		classes = append(classes, c)
	}
	return NewRegistry(classes...), nil
}
