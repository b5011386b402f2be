package scripting

import (
	"fmt"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Yaegi is an Engine backed by an isolated yaegi interpreter. Scope
// scripts are Go source evaluated in the interpreter's universe; the host
// API is injected as an export table at construction time.
type Yaegi struct {
	interp *interp.Interpreter
}

// NewYaegi creates an interpreter with the Go standard library and the
// host API in exports available to scripts.
func NewYaegi(exports interp.Exports) (*Yaegi, error) {
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("loading interpreter stdlib: %w", err)
	}
	if len(exports) > 0 {
		if err := i.Use(exports); err != nil {
			return nil, fmt.Errorf("loading host exports: %w", err)
		}
	}
	return &Yaegi{interp: i}, nil
}

// Run evaluates a chunk of script source.
func (y *Yaegi) Run(src, what string) (err error) {
	if y.interp == nil {
		return fmt.Errorf("%s: interpreter is closed", what)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: script panic: %v", what, r)
		}
	}()
	if _, err := y.interp.Eval(src); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

// lookup resolves a possibly dotted name to a function value.
func (y *Yaegi) lookup(name string) (fn reflect.Value, ok bool) {
	if y.interp == nil || name == "" {
		return reflect.Value{}, false
	}
	defer func() {
		if recover() != nil {
			fn, ok = reflect.Value{}, false
		}
	}()
	v, err := y.interp.Eval(name)
	if err != nil || !v.IsValid() {
		return reflect.Value{}, false
	}
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return reflect.Value{}, false
	}
	return v, true
}

// Find reports whether name resolves to a callable function.
func (y *Yaegi) Find(name string) bool {
	_, ok := y.lookup(name)
	return ok
}

// Call performs a protected call. Panics raised while marshaling or
// inside the script are converted to errors.
func (y *Yaegi) Call(name string, args []Value) (results []Value, err error) {
	fn, ok := y.lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchFunction, name)
	}
	in, err := buildArgs(fn.Type(), args)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", name, err)
	}
	defer func() {
		if r := recover(); r != nil {
			results, err = nil, fmt.Errorf("runtime error in %s: %v", name, r)
		}
	}()
	out := fn.Call(in)
	for i, rv := range out {
		v, convErr := fromReflect(rv)
		if convErr != nil {
			return nil, fmt.Errorf("return value #%d of %s: %w", i+1, name, convErr)
		}
		results = append(results, v)
	}
	return results, nil
}

// Close releases the interpreter. yaegi has no teardown of its own; the
// engine just becomes unusable.
func (y *Yaegi) Close() {
	y.interp = nil
}

// buildArgs coerces marshaled values to the function's parameter types.
// Surplus arguments beyond a non-variadic parameter list are dropped so a
// callback may declare only the leading parameters it cares about.
func buildArgs(ft reflect.Type, args []Value) ([]reflect.Value, error) {
	numIn := ft.NumIn()
	fixed := numIn
	if ft.IsVariadic() {
		fixed = numIn - 1
	}
	if len(args) < fixed {
		return nil, fmt.Errorf("want %d arguments, have %d", fixed, len(args))
	}
	if !ft.IsVariadic() && len(args) > numIn {
		args = args[:numIn]
	}

	in := make([]reflect.Value, 0, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if i < fixed {
			pt = ft.In(i)
		} else {
			pt = ft.In(numIn - 1).Elem()
		}
		rv, err := toReflect(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("argument #%d: %w", i+1, err)
		}
		in = append(in, rv)
	}
	return in, nil
}

// Native returns the plain Go representation of a value.
func (v Value) Native() any {
	switch v.kind {
	case KindNil:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindText:
		return v.str
	case KindList:
		items := make([]any, len(v.list))
		for i, it := range v.list {
			items[i] = it.Native()
		}
		return items
	case KindMap:
		entries := make(map[string]any, len(v.m))
		for k, it := range v.m {
			entries[k] = it.Native()
		}
		return entries
	}
	return nil
}

func toReflect(v Value, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Interface:
		if t.NumMethod() != 0 {
			return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", t)
		}
		n := v.Native()
		if n == nil {
			return reflect.Zero(t), nil
		}
		return reflect.ValueOf(n), nil
	case reflect.String:
		return reflect.ValueOf(v.TextVal()).Convert(t), nil
	case reflect.Bool:
		return reflect.ValueOf(v.BoolVal()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.ValueOf(int64(v.NumberVal())).Convert(t), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.ValueOf(uint64(v.NumberVal())).Convert(t), nil
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(v.NumberVal()).Convert(t), nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", t)
		}
		out := reflect.MakeMapWithSize(t, len(v.m))
		for k, it := range v.m {
			ev, err := toReflect(it, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(reflect.ValueOf(k), ev)
		}
		return out, nil
	case reflect.Slice:
		out := reflect.MakeSlice(t, 0, len(v.list))
		for _, it := range v.list {
			ev, err := toReflect(it, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, ev)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported parameter type %s", t)
}

func fromReflect(rv reflect.Value) (Value, error) {
	if !rv.IsValid() {
		return MakeNil(), nil
	}
	if rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return MakeNil(), nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Bool:
		return MakeBool(rv.Bool()), nil
	case reflect.String:
		return MakeText(rv.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return MakeNumber(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return MakeNumber(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return MakeNumber(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			v, err := fromReflect(rv.Index(i))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Value{kind: KindList, list: items}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("cannot marshal %s from script", rv.Type())
		}
		entries := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			v, err := fromReflect(iter.Value())
			if err != nil {
				return Value{}, err
			}
			entries[iter.Key().String()] = v
		}
		return Value{kind: KindMap, m: entries}, nil
	}
	return Value{}, fmt.Errorf("cannot marshal %s from script", rv.Type())
}
