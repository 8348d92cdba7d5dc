package argument

import (
	"strconv"
	"strings"

	apperrors "EWI/internal/errors"
)

// ValueKind selects the codec used for an argument value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindInt
	KindNullableInt
	KindUint64
	KindStringList
)

// String renders the kind name used in conversion errors.
func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindNullableInt:
		return "nullable int"
	case KindUint64:
		return "uint64"
	case KindStringList:
		return "string list"
	default:
		return "unknown"
	}
}

// ConversionError reports a raw argument string that could not be decoded.
type ConversionError struct {
	Argument string
	Raw      string
	Kind     ValueKind
	Err      error
}

// Error implements the error interface.
func (e *ConversionError) Error() string {
	return "argument " + e.Argument + ": cannot convert " + strconv.Quote(e.Raw) + " to " + e.Kind.String()
}

// Unwrap exposes the underlying parse error.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Encode renders a typed value in its canonical string form. Nil values of
// nullable kinds encode as the empty string.
func Encode(kind ValueKind, value any) string {
	switch kind {
	case KindBool:
		if b, ok := value.(bool); ok && b {
			return "true"
		}
		return "false"
	case KindInt:
		if i, ok := value.(int); ok {
			return strconv.Itoa(i)
		}
		return "0"
	case KindNullableInt:
		if p, ok := value.(*int); ok && p != nil {
			return strconv.Itoa(*p)
		}
		return ""
	case KindUint64:
		if u, ok := value.(uint64); ok {
			return strconv.FormatUint(u, 10)
		}
		return "0"
	case KindStringList:
		list, _ := value.([]string)
		return strings.Join(CleanList(list), ",")
	default:
		s, _ := value.(string)
		return s
	}
}

// Decode parses raw into the typed value for kind. name is only used to
// label conversion errors.
func Decode(name string, kind ValueKind, raw string) (any, error) {
	trimmed := strings.TrimSpace(raw)

	switch kind {
	case KindBool:
		b, err := strconv.ParseBool(strings.ToLower(trimmed))
		if err != nil {
			return nil, conversionFailure(name, raw, kind, err)
		}
		return b, nil
	case KindInt:
		i, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, conversionFailure(name, raw, kind, err)
		}
		return i, nil
	case KindNullableInt:
		if trimmed == "" {
			return (*int)(nil), nil
		}
		i, err := strconv.Atoi(trimmed)
		if err != nil {
			return nil, conversionFailure(name, raw, kind, err)
		}
		return &i, nil
	case KindUint64:
		u, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return nil, conversionFailure(name, raw, kind, err)
		}
		return u, nil
	case KindStringList:
		return SplitList(raw), nil
	default:
		return raw, nil
	}
}

// CleanList trims every entry and drops the empty ones.
func CleanList(list []string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// SplitList splits a comma-joined list, trimming entries and dropping
// empties. Entries containing literal commas do not survive a round trip.
func SplitList(raw string) []string {
	return CleanList(strings.Split(raw, ","))
}

func conversionFailure(name, raw string, kind ValueKind, err error) error {
	convErr := &ConversionError{Argument: name, Raw: raw, Kind: kind, Err: err}
	return apperrors.ArgumentError(apperrors.CodeArgumentConversion, convErr.Error(), convErr).
		WithModule("argument").
		WithOperation("argument.Decode").
		WithFields(apperrors.Metadata{
			"argument": name,
			"raw":      raw,
			"kind":     kind.String(),
		})
}
