// Package script hosts Starlark modules and functions for capture and
// rehydration. An Env loads modules, resolves functions by module path,
// and compiles standalone functions with captured bindings. Functions
// satisfy the capsule package's Callable and the Env its Resolver, so
// script values flow through the capture engine like any other type.
package script
