// Package registry provides a generic, thread-safe, insertion-ordered registry.
//
// Unlike a plain map, a Registry remembers the order in which keys were
// registered and refuses to overwrite an existing key. metagraph uses it for
// per-kind pattern definitions (which must enumerate in declaration order) and
// for named calc functions referenced by declaratively loaded dataflows.
//
// # Basic Usage
//
//	funcs := registry.New[string, metagraph.CalcFunc]()
//	funcs.MustRegister("sum", sum)
//
//	fn, err := funcs.Lookup("sum")
//	if errors.Is(err, registry.ErrNotFound) {
//	    // ...
//	}
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Range iterates over a
// snapshot taken under the read lock.
package registry
