package argument

import (
	"sort"
	"strings"

	apperrors "EWI/internal/errors"
)

// Provider is implemented by every step type carrying arguments. The list
// returned by Arguments is fixed per type; descriptors are bound to the
// receiving instance.
type Provider interface {
	StepType() string
	Arguments() []Descriptor
}

// Resolver maps a default expression to its value on the current machine.
type Resolver interface {
	Resolve(expression string) (string, bool)
}

// Catalog is the flat, ordered set of arguments declared by a workflow's steps.
type Catalog struct {
	entries  []Descriptor
	byName   map[string]int
	byOwner  map[string][]int
	resolver Resolver
}

// Build aggregates the descriptors of every provider, in order. Two
// arguments with the same case-insensitive name, in the same or different
// step types, are a defect in the step definitions and fail construction.
func Build(providers ...Provider) (*Catalog, error) {
	c := &Catalog{
		byName:  make(map[string]int),
		byOwner: make(map[string][]int),
	}

	for _, p := range providers {
		owner := p.StepType()
		for _, d := range p.Arguments() {
			d.Owner = owner
			if idx, exists := c.byName[d.key()]; exists {
				prev := c.entries[idx]
				return nil, apperrors.CatalogError(
					apperrors.CodeDuplicateArgument,
					"argument "+d.Name+" on "+owner+" collides with "+prev.Name+" on "+prev.Owner,
					nil,
				).WithModule("argument").
					WithOperation("argument.Build").
					WithFields(apperrors.Metadata{
						"argument":       d.Name,
						"step":           owner,
						"existing_step":  prev.Owner,
						"existing_field": prev.Name,
					})
			}
			c.byName[d.key()] = len(c.entries)
			c.byOwner[owner] = append(c.byOwner[owner], len(c.entries))
			c.entries = append(c.entries, d)
		}
	}

	return c, nil
}

// MustBuild is Build for step sets fixed at compile time.
func MustBuild(providers ...Provider) *Catalog {
	c, err := Build(providers...)
	if err != nil {
		panic(err)
	}
	return c
}

// WithResolver sets the resolver used for computed defaults.
func (c *Catalog) WithResolver(r Resolver) *Catalog {
	c.resolver = r
	return c
}

// Descriptors returns every descriptor in declaration order.
func (c *Catalog) Descriptors() []Descriptor {
	return append([]Descriptor(nil), c.entries...)
}

// Names returns every argument name, upper-cased, in declaration order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for _, d := range c.entries {
		names = append(names, d.key())
	}
	return names
}

// For returns the descriptors owned by the given step type.
func (c *Catalog) For(owner string) []Descriptor {
	idxs := c.byOwner[owner]
	out := make([]Descriptor, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, c.entries[i])
	}
	return out
}

// Lookup finds a descriptor by case-insensitive name.
func (c *Catalog) Lookup(name string) (Descriptor, bool) {
	idx, ok := c.byName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return Descriptor{}, false
	}
	return c.entries[idx], true
}

// Serialize snapshots the current step values. Keys are upper-cased names.
func (c *Catalog) Serialize() map[string]string {
	out := make(map[string]string, len(c.entries))
	for _, d := range c.entries {
		encoded := d.Encoded()
		switch d.Kind {
		case StaticDefault:
			if encoded == Encode(d.Value, d.Default) {
				continue
			}
		case ComputedDefault:
			if c.resolver != nil {
				if resolved, ok := c.resolver.Resolve(d.Expression); ok && resolved == encoded {
					encoded = d.Expression
				}
			}
		}
		out[d.key()] = encoded
	}
	return out
}

// Deserialize assigns argument values onto the bound steps. Unknown names
// are ignored. Computed-default expressions are resolved on this machine.
func (c *Catalog) Deserialize(args map[string]string) error {
	for _, name := range sortedKeys(args) {
		d, ok := c.Lookup(name)
		if !ok {
			continue
		}

		raw := args[name]
		if d.Kind == ComputedDefault && strings.TrimSpace(raw) == d.Expression {
			if c.resolver == nil {
				continue
			}
			resolved, ok := c.resolver.Resolve(d.Expression)
			if !ok {
				continue
			}
			raw = resolved
		}

		v, err := Decode(d.key(), d.Value, raw)
		if err != nil {
			return err
		}
		d.Set(v)
	}
	return nil
}

// PropertyString renders args as NAME="value" pairs for the packaging layer,
// in catalog order, followed by any names the catalog does not know.
func (c *Catalog) PropertyString(args map[string]string) string {
	seen := make(map[string]struct{}, len(args))
	parts := make([]string, 0, len(args))

	for _, d := range c.entries {
		v, ok := args[d.key()]
		if !ok {
			continue
		}
		seen[d.key()] = struct{}{}
		parts = append(parts, d.key()+"=\""+v+"\"")
	}
	for _, k := range sortedKeys(args) {
		upper := strings.ToUpper(k)
		if _, done := seen[upper]; done {
			continue
		}
		parts = append(parts, upper+"=\""+args[k]+"\"")
	}

	return strings.Join(parts, " ")
}

// ParseCommandLine turns NAME=value tokens into an argument map. Surrounding
// double quotes are stripped, names are upper-cased and the last occurrence
// of a name wins. Tokens without '=' are returned as leftovers.
func ParseCommandLine(tokens []string) (map[string]string, []string) {
	args := make(map[string]string)
	var rest []string

	for _, tok := range tokens {
		name, value, ok := strings.Cut(tok, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			rest = append(rest, tok)
			continue
		}
		if len(value) >= 2 && strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
			value = value[1 : len(value)-1]
		}
		args[strings.ToUpper(name)] = value
	}

	return args, rest
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
