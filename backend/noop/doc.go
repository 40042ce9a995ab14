// Package noop provides an in-process sandbox backend for tests and
// development. There is no isolation: "sandboxed" functions are Go
// functions registered on the backend, and the sandbox heap is a plain
// byte slab in host memory. What the backend does reproduce faithfully
// is the boundary: registered functions see only the heap and
// sandbox-ABI argument slots, offsets are heap-relative, offset zero is
// null, and the ABI descriptor is configurable so narrower integer and
// pointer widths can be exercised.
package noop
