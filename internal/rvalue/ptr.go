package rvalue

import "reflect"

// ptrOf extracts the underlying pointer from an interface holding a pointer
// or func value, for identity hashing of GC objects and CFunctions. Every
// concrete type stored behind gcheap.Object is a pointer and a CFunction
// payload is a func; strings are hashed by content instead (see Hash).
func ptrOf(x any) uintptr {
	if x == nil {
		return 0
	}
	v := reflect.ValueOf(x)
	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Func {
		return v.Pointer()
	}
	return 0
}
