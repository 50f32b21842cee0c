package collector

import (
	"regexp"
	"strings"

	"github.com/panbanda/dartrefs/pkg/lexer"
	"github.com/panbanda/dartrefs/pkg/models"
)

const ident = `[A-Za-z_$][A-Za-z0-9_$]*`

type typeKind int

const (
	kindMixinClass typeKind = iota
	kindModifiedClass
	kindClass
	kindExtensionType
	kindEnum
	kindMixin
	kindExtension
	kindAnonymousExtension
	kindTypedef
)

type typePattern struct {
	kind typeKind
	re   *regexp.Regexp
}

// typePatterns are tried in order; the first match wins.
var typePatterns = []typePattern{
	{kindMixinClass, regexp.MustCompile(`^(?:(?:abstract|base)\s+)*mixin\s+class\s+(` + ident + `)`)},
	{kindModifiedClass, regexp.MustCompile(`^((?:(?:abstract|sealed|base|final|interface)\s+)+)class\s+(` + ident + `)`)},
	{kindClass, regexp.MustCompile(`^class\s+(` + ident + `)`)},
	{kindExtensionType, regexp.MustCompile(`^extension\s+type\s+(?:const\s+)?(` + ident + `)`)},
	{kindEnum, regexp.MustCompile(`^enum\s+(` + ident + `)`)},
	{kindMixin, regexp.MustCompile(`^(?:base\s+)?mixin\s+(` + ident + `)`)},
	{kindExtension, regexp.MustCompile(`^extension\s+(` + ident + `)\s*(?:<[^{]*?>)?\s+on\s`)},
	{kindAnonymousExtension, regexp.MustCompile(`^extension\s*(?:<[^{]*?>)?\s+on\s+([^{]+?)\s*(?:\{|$)`)},
	{kindTypedef, regexp.MustCompile(`^typedef\s+(` + ident + `)\s*(?:<[^=]*>)?\s*=`)},
	{kindTypedef, regexp.MustCompile(`^typedef\s+.*?\b(` + ident + `)\s*(?:<[^>]*>)?\s*\(`)},
}

// Superclass and mixin constraint clauses, matched against the header text
// that follows the declared name and its type parameters.
var (
	extendsPattern = regexp.MustCompile(`^\s*extends\s+(` + ident + `)`)
	onPattern      = regexp.MustCompile(`^\s*on\s+(` + ident + `)`)
)

// anonymousPrefix cannot start a Dart identifier, so synthesized names never
// collide with declared ones.
const anonymousPrefix = "~ExtensionOn"

type typeMatch struct {
	name     string
	category models.Category
	col      int // offset of the name within the matched text
	hasBody  bool
	kind     typeKind
}

// matchType applies the declaration patterns to text, which must start at the
// first non-blank byte of the line.
func matchType(text string) (typeMatch, bool) {
	for _, p := range typePatterns {
		m := p.re.FindStringSubmatchIndex(text)
		if m == nil {
			continue
		}
		g := 1
		if p.kind == kindModifiedClass {
			g = 2
		}
		name := text[m[2*g]:m[2*g+1]]
		tm := typeMatch{name: name, col: m[2*g], hasBody: p.kind != kindTypedef, kind: p.kind}

		switch p.kind {
		case kindMixinClass:
			tm.category = models.CategoryMixinClass
		case kindModifiedClass:
			tm.category = modifierCategory(text[m[2]:m[3]])
		case kindClass, kindExtensionType:
			tm.category = models.CategoryClass
		case kindEnum:
			tm.category = models.CategoryEnum
		case kindMixin:
			tm.category = models.CategoryMixin
		case kindExtension:
			tm.category = models.CategoryExtension
		case kindAnonymousExtension:
			tm.category = models.CategoryAnonymousExtension
			tm.name = anonymousName(name)
		case kindTypedef:
			tm.category = models.CategoryTypedef
		}

		if tm.kind != kindAnonymousExtension && lexer.IsKeyword(tm.name) {
			return typeMatch{}, false
		}
		return tm, true
	}
	return typeMatch{}, false
}

// modifierCategory picks the category of a modified class. When modifiers are
// combined the most restrictive one names the category.
func modifierCategory(mods string) models.Category {
	fields := strings.Fields(mods)
	has := func(m string) bool {
		for _, f := range fields {
			if f == m {
				return true
			}
		}
		return false
	}
	switch {
	case has("sealed"):
		return models.CategorySealedClass
	case has("interface"):
		return models.CategoryInterfaceClass
	case has("final"):
		return models.CategoryFinalClass
	case has("base"):
		return models.CategoryBaseClass
	default:
		return models.CategoryAbstractClass
	}
}

func anonymousName(onType string) string {
	var b strings.Builder
	b.WriteString(anonymousPrefix)
	for i := 0; i < len(onType); i++ {
		if lexer.IsIdentPart(onType[i]) {
			b.WriteByte(onType[i])
		}
	}
	return b.String()
}

// stripAnnotations removes leading metadata annotations such as
// "@immutable" or "@pragma(...)" and returns the rest of the line together
// with the number of bytes removed.
func stripAnnotations(text string) (string, int) {
	cut := 0
	for {
		rest := text[cut:]
		trimmed := strings.TrimLeft(rest, " \t")
		if !strings.HasPrefix(trimmed, "@") {
			return text[cut:], cut
		}
		i := cut + (len(rest) - len(trimmed)) + 1
		for i < len(text) && (lexer.IsIdentPart(text[i]) || text[i] == '.') {
			i++
		}
		if i < len(text) && text[i] == '(' {
			depth := 0
			for ; i < len(text); i++ {
				if text[i] == '(' {
					depth++
				} else if text[i] == ')' {
					depth--
					if depth == 0 {
						i++
						break
					}
				}
			}
			if depth != 0 {
				return text[cut:], cut
			}
		}
		cut = i
	}
}
