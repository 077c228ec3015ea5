package funscript

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/funvibe/funscript/internal/value"
)

var (
	valueType = reflect.TypeOf(value.Value{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// Marshaller handles conversion between Go and script values.
type Marshaller struct{}

func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// ToValue converts a Go value to a script value. Structs and maps become
// objects, slices become arrays, and functions become callable natives.
func (m *Marshaller) ToValue(val interface{}) (value.Value, error) {
	if val == nil {
		return value.Null(), nil
	}
	if v, ok := val.(value.Value); ok {
		return v, nil
	}
	return m.toValue(reflect.ValueOf(val), "")
}

func (m *Marshaller) toValueNamed(val interface{}, name string) (value.Value, error) {
	if val == nil {
		return value.Null(), nil
	}
	if v, ok := val.(value.Value); ok {
		return v, nil
	}
	return m.toValue(reflect.ValueOf(val), name)
}

func (m *Marshaller) toValue(v reflect.Value, name string) (value.Value, error) {
	if v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	if !v.IsValid() {
		return value.Null(), nil
	}
	if v.Type() == valueType {
		return v.Interface().(value.Value), nil
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Number(float64(v.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return value.Number(float64(v.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return value.Number(v.Float()), nil
	case reflect.Bool:
		return value.Bool(v.Bool()), nil
	case reflect.String:
		return value.String(v.String()), nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return value.Null(), nil
		}
		return m.sliceToArray(v)
	case reflect.Map:
		if v.IsNil() {
			return value.Null(), nil
		}
		return m.mapToObject(v)
	case reflect.Struct:
		return m.structToObject(v)
	case reflect.Ptr:
		if v.IsNil() {
			return value.Null(), nil
		}
		return m.toValue(v.Elem(), name)
	case reflect.Func:
		if v.IsNil() {
			return value.Null(), nil
		}
		return value.FromNative(m.wrapFunc(name, v)), nil
	}
	return value.Undefined(), fmt.Errorf("cannot convert %s to a script value", v.Type())
}

// FromValue converts a script value to a Go value. targetType is optional;
// without it numbers become float64, arrays []interface{} and objects
// map[string]interface{}. Functions stay value.Value so they can be passed
// back to Call.
func (m *Marshaller) FromValue(v value.Value, targetType reflect.Type) (interface{}, error) {
	if targetType == valueType {
		return v, nil
	}
	switch {
	case v.IsNullish():
		return nil, nil
	case v.Type == value.ValBool:
		return v.AsBool(), nil
	case v.IsNumber():
		return fromNumber(v.AsNumber(), targetType)
	case v.IsString():
		return v.AsString(), nil
	case v.Type == value.ValArray:
		return m.arrayToSlice(v.AsArray(), targetType)
	case v.Type == value.ValObject:
		o := v.AsObject()
		if o.Class == value.ClassError {
			return errors.New(value.ToString(v)), nil
		}
		if targetType != nil && targetType.Kind() == reflect.Struct {
			return m.objectToStruct(o, targetType)
		}
		if targetType != nil && targetType.Kind() == reflect.Ptr && targetType.Elem().Kind() == reflect.Struct {
			s, err := m.objectToStruct(o, targetType.Elem())
			if err != nil {
				return nil, err
			}
			p := reflect.New(targetType.Elem())
			p.Elem().Set(reflect.ValueOf(s))
			return p.Interface(), nil
		}
		return m.objectToMap(o, targetType)
	case v.IsCallable():
		return v, nil
	}
	return nil, fmt.Errorf("unsupported type for conversion: %s", value.TypeOf(v))
}

func fromNumber(f float64, targetType reflect.Type) (interface{}, error) {
	if targetType == nil {
		return f, nil
	}
	switch targetType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f != float64(int64(f)) {
			return nil, fmt.Errorf("%v is not an integer", f)
		}
		return reflect.ValueOf(int64(f)).Convert(targetType).Interface(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f < 0 || f != float64(uint64(f)) {
			return nil, fmt.Errorf("%v is not an unsigned integer", f)
		}
		return reflect.ValueOf(uint64(f)).Convert(targetType).Interface(), nil
	case reflect.Float32:
		return float32(f), nil
	}
	return f, nil
}

func (m *Marshaller) sliceToArray(v reflect.Value) (value.Value, error) {
	elems := make([]value.Value, v.Len())
	for i := range elems {
		e, err := m.toValue(v.Index(i), "")
		if err != nil {
			return value.Undefined(), err
		}
		elems[i] = e
	}
	return value.FromArray(value.NewArray(elems)), nil
}

func (m *Marshaller) mapToObject(v reflect.Value) (value.Value, error) {
	if v.Type().Key().Kind() != reflect.String {
		return value.Undefined(), fmt.Errorf("map key: %s is not a string type", v.Type().Key())
	}
	o := value.NewObject()
	iter := v.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		val, err := m.toValue(iter.Value(), key)
		if err != nil {
			return value.Undefined(), fmt.Errorf("map value %q: %w", key, err)
		}
		o.Define(key, val)
	}
	return value.FromObject(o), nil
}

func (m *Marshaller) structToObject(v reflect.Value) (value.Value, error) {
	o := value.NewObject()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" { // Skip unexported fields
			continue
		}
		val, err := m.toValue(v.Field(i), field.Name)
		if err != nil {
			return value.Undefined(), fmt.Errorf("field %s: %w", field.Name, err)
		}
		o.Define(field.Name, val)
	}
	return value.FromObject(o), nil
}

func (m *Marshaller) arrayToSlice(a *value.Array, targetType reflect.Type) (interface{}, error) {
	elemType := reflect.TypeOf((*interface{})(nil)).Elem()
	if targetType != nil && targetType.Kind() == reflect.Slice {
		elemType = targetType.Elem()
	}

	slice := reflect.MakeSlice(reflect.SliceOf(elemType), 0, len(a.Elements))
	for _, el := range a.Elements {
		rv, err := m.assignable(el, elemType)
		if err != nil {
			return nil, err
		}
		slice = reflect.Append(slice, rv)
	}
	return slice.Interface(), nil
}

func (m *Marshaller) objectToMap(o *value.Object, targetType reflect.Type) (interface{}, error) {
	if targetType != nil && targetType.Kind() == reflect.Map {
		if targetType.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key: %s is not a string type", targetType.Key())
		}
		result := reflect.MakeMapWithSize(targetType, o.Len())
		for _, k := range o.Keys() {
			vv, err := m.assignable(o.GetOwn(k), targetType.Elem())
			if err != nil {
				return nil, fmt.Errorf("map value %q: %w", k, err)
			}
			result.SetMapIndex(reflect.ValueOf(k).Convert(targetType.Key()), vv)
		}
		return result.Interface(), nil
	}

	result := make(map[string]interface{}, o.Len())
	for _, k := range o.Keys() {
		val, err := m.FromValue(o.GetOwn(k), nil)
		if err != nil {
			return nil, err
		}
		result[k] = val
	}
	return result, nil
}

// objectToStruct fills the exported fields whose names are keys of o.
func (m *Marshaller) objectToStruct(o *value.Object, t reflect.Type) (interface{}, error) {
	out := reflect.New(t).Elem()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			continue
		}
		pv, ok := o.Get(field.Name)
		if !ok {
			continue
		}
		fv, err := m.assignable(pv, field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		out.Field(i).Set(fv)
	}
	return out.Interface(), nil
}

// assignable converts v to a reflect.Value that can be stored in a t.
func (m *Marshaller) assignable(v value.Value, t reflect.Type) (reflect.Value, error) {
	val, err := m.FromValue(v, t)
	if err != nil {
		return reflect.Value{}, err
	}
	if val == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(val)
	switch {
	case rv.Type().AssignableTo(t):
		return rv, nil
	case rv.Type().ConvertibleTo(t) && rv.Kind() != reflect.String:
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", rv.Type(), t)
}

// wrapFunc exposes a Go function to scripts. Missing arguments are passed
// as zero values and extra ones are dropped. A trailing error result is
// thrown when non-nil; two or more other results come back as an array.
func (m *Marshaller) wrapFunc(name string, fn reflect.Value) *value.Native {
	fnType := fn.Type()
	numIn := fnType.NumIn()
	isVariadic := fnType.IsVariadic()
	fixed := numIn
	if isVariadic {
		fixed--
	}

	return value.NewNative(name, fixed, func(_ value.CallContext, _ value.Value, args []value.Value) (value.Value, error) {
		goArgs := make([]reflect.Value, 0, max(numIn, len(args)))
		for i := 0; i < fixed; i++ {
			arg := value.Undefined()
			if i < len(args) {
				arg = args[i]
			}
			rv, err := m.assignable(arg, fnType.In(i))
			if err != nil {
				return value.Undefined(), value.Errorf(value.TypeError, "%s: argument %d: %s", name, i+1, err)
			}
			goArgs = append(goArgs, rv)
		}
		if isVariadic {
			elemType := fnType.In(numIn - 1).Elem()
			for i := fixed; i < len(args); i++ {
				rv, err := m.assignable(args[i], elemType)
				if err != nil {
					return value.Undefined(), value.Errorf(value.TypeError, "%s: argument %d: %s", name, i+1, err)
				}
				goArgs = append(goArgs, rv)
			}
		}

		results := fn.Call(goArgs)

		if n := len(results); n > 0 && fnType.Out(n-1) == errorType {
			if err, _ := results[n-1].Interface().(error); err != nil {
				var ve *value.Error
				if errors.As(err, &ve) {
					return value.Undefined(), ve
				}
				return value.Undefined(), value.Errorf(value.PlainError, "%s", err)
			}
			results = results[:n-1]
		}
		switch len(results) {
		case 0:
			return value.Undefined(), nil
		case 1:
			return m.toValue(results[0], "")
		}
		elems := make([]value.Value, len(results))
		for i, res := range results {
			v, err := m.toValue(res, "")
			if err != nil {
				return value.Undefined(), err
			}
			elems[i] = v
		}
		return value.FromArray(value.NewArray(elems)), nil
	})
}
