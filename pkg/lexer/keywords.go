package lexer

// keywords holds Dart reserved words, built-in identifiers and the
// contextual keywords that would otherwise be mistaken for declaration names
// or call targets.
var keywords = map[string]struct{}{
	// reserved
	"assert": {}, "break": {}, "case": {}, "catch": {}, "class": {}, "const": {},
	"continue": {}, "default": {}, "do": {}, "else": {}, "enum": {}, "extends": {},
	"false": {}, "final": {}, "finally": {}, "for": {}, "if": {}, "in": {}, "is": {},
	"new": {}, "null": {}, "rethrow": {}, "return": {}, "super": {}, "switch": {},
	"this": {}, "throw": {}, "true": {}, "try": {}, "var": {}, "void": {},
	"while": {}, "with": {},

	// built-in identifiers
	"abstract": {}, "as": {}, "covariant": {}, "deferred": {}, "dynamic": {},
	"export": {}, "extension": {}, "external": {}, "factory": {}, "Function": {},
	"get": {}, "implements": {}, "import": {}, "interface": {}, "late": {},
	"library": {}, "mixin": {}, "operator": {}, "part": {}, "required": {},
	"set": {}, "static": {}, "typedef": {},

	// contextual
	"async": {}, "await": {}, "base": {}, "hide": {}, "of": {}, "on": {},
	"sealed": {}, "show": {}, "sync": {}, "when": {}, "yield": {},
}

// IsKeyword reports whether name is in the keyword table.
func IsKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}
