package argument

import "strings"

// Kind describes how an argument value is serialized.
type Kind int

const (
	// Direct arguments are always serialized as-is.
	Direct Kind = iota
	// StaticDefault arguments are serialized only when they differ from a constant.
	StaticDefault
	// ComputedDefault arguments are serialized as a default expression while
	// they hold the value that expression resolves to on this machine.
	ComputedDefault
)

// String renders the kind name.
func (k Kind) String() string {
	switch k {
	case Direct:
		return "direct"
	case StaticDefault:
		return "static-default"
	case ComputedDefault:
		return "computed-default"
	default:
		return "unknown"
	}
}

// Descriptor binds one named argument to a step property.
type Descriptor struct {
	Name       string
	Owner      string
	Kind       Kind
	Value      ValueKind
	Default    any
	Expression string

	get func() any
	set func(any)
}

// Get returns the current typed value.
func (d Descriptor) Get() any {
	return d.get()
}

// Set assigns a typed value produced by Decode.
func (d Descriptor) Set(v any) {
	d.set(v)
}

// Encoded returns the canonical string of the current value.
func (d Descriptor) Encoded() string {
	return Encode(d.Value, d.get())
}

// WithStaticDefault marks the argument as serialized only when it differs from v.
func (d Descriptor) WithStaticDefault(v any) Descriptor {
	d.Kind = StaticDefault
	d.Default = v
	return d
}

// WithComputedDefault marks the argument as resolved from expression on the
// machine running the tasks.
func (d Descriptor) WithComputedDefault(expression string) Descriptor {
	d.Kind = ComputedDefault
	d.Expression = expression
	return d
}

func (d Descriptor) key() string {
	return strings.ToUpper(d.Name)
}

// StringArg declares a string argument.
func StringArg(name string, get func() string, set func(string)) Descriptor {
	return Descriptor{
		Name:  name,
		Value: KindString,
		get:   func() any { return get() },
		set:   func(v any) { set(v.(string)) },
	}
}

// BoolArg declares a boolean argument.
func BoolArg(name string, get func() bool, set func(bool)) Descriptor {
	return Descriptor{
		Name:  name,
		Value: KindBool,
		get:   func() any { return get() },
		set:   func(v any) { set(v.(bool)) },
	}
}

// IntArg declares an integer argument.
func IntArg(name string, get func() int, set func(int)) Descriptor {
	return Descriptor{
		Name:  name,
		Value: KindInt,
		get:   func() any { return get() },
		set:   func(v any) { set(v.(int)) },
	}
}

// NullableIntArg declares an optional integer argument.
func NullableIntArg(name string, get func() *int, set func(*int)) Descriptor {
	return Descriptor{
		Name:  name,
		Value: KindNullableInt,
		get:   func() any { return get() },
		set:   func(v any) { set(v.(*int)) },
	}
}

// Uint64Arg declares an unsigned 64-bit argument.
func Uint64Arg(name string, get func() uint64, set func(uint64)) Descriptor {
	return Descriptor{
		Name:  name,
		Value: KindUint64,
		get:   func() any { return get() },
		set:   func(v any) { set(v.(uint64)) },
	}
}

// ListArg declares a comma-joined string list argument.
func ListArg(name string, get func() []string, set func([]string)) Descriptor {
	return Descriptor{
		Name:  name,
		Value: KindStringList,
		get:   func() any { return get() },
		set:   func(v any) { set(v.([]string)) },
	}
}
