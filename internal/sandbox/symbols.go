package sandbox

import "reflect"

// ImportPath is the path under which interpreted snippets import this
// package. The scaffold dot-imports it so Field, NotNull and friends
// are bare names, mirroring how declarative schema files read.
const ImportPath = "declsql/sandbox"

// Symbols returns the yaegi export table for the sandbox package.
func Symbols() map[string]map[string]reflect.Value {
	return map[string]map[string]reflect.Value{
		ImportPath + "/sandbox": {
			"New":      reflect.ValueOf(New),
			"Open":     reflect.ValueOf(Open),
			"Field":    reflect.ValueOf(Field),
			"NotNull":  reflect.ValueOf(NotNull),
			"Unique":   reflect.ValueOf(Unique),
			"Length":   reflect.ValueOf(Length),
			"Default":  reflect.ValueOf(Default),
			"Requires": reflect.ValueOf(Requires),
			"Empty":    reflect.ValueOf(Empty),

			"DAL":    reflect.ValueOf((*DAL)(nil)),
			"Table":  reflect.ValueOf((*Table)(nil)),
			"Column": reflect.ValueOf((*Column)(nil)),
			"Option": reflect.ValueOf((*Option)(nil)),
			"Value":  reflect.ValueOf((*Value)(nil)),
		},
	}
}

// ExportedNames lists the names a dot-import of the sandbox package
// binds, for the static analyzer's wildcard-import resolution.
func ExportedNames() []string {
	var names []string
	for name := range Symbols()[ImportPath+"/sandbox"] {
		names = append(names, name)
	}
	return names
}
