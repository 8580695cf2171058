package sandbox

// Value is the neutral placeholder bound to names the repair loop could
// not resolve. It answers attribute access, item access, and calls with
// itself and stringifies to the empty string, which is enough surface
// for typical default-value and validator expressions to evaluate
// without failing.
//
// In a dynamic language this would be an object intercepting every
// attribute lookup; here it is an explicit capability interface: the
// snippet dialect spells attribute access as Attr, item access as
// Index, and invocation as Call.
type Value struct{}

// Empty returns the shared neutral placeholder value.
func Empty() Value { return Value{} }

// Attr answers any attribute access with the placeholder itself.
func (v Value) Attr(name string) Value { return v }

// Index answers any item access with the placeholder itself.
func (v Value) Index(key any) Value { return v }

// Call answers any invocation with the placeholder itself.
func (v Value) Call(args ...any) Value { return v }

// String renders the placeholder as an empty string.
func (v Value) String() string { return "" }
