package text

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var flatLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Note", Pattern: `!-[^\r\n]*`},
	{Name: "Comment", Pattern: `![^\r\n]*`},
	{Name: "Sep", Pattern: `,`},
	{Name: "End", Pattern: `;`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Value", Pattern: `[^,;!\s][^,;!\r\n]*`},
})

var parser = participle.MustBuild[fileAST](
	participle.Lexer(flatLexer),
	participle.Elide("Whitespace", "Note"),
)

type fileAST struct {
	Entries []*entryAST `parser:"@@*"`
}

type entryAST struct {
	Pos     lexer.Position
	Comment *string    `parser:"  @Comment"`
	Record  *recordAST `parser:"| @@"`
}

type recordAST struct {
	Pos    lexer.Position
	Type   string   `parser:"@Value"`
	Tokens []string `parser:"(@Sep | @Value | Comment)* End"`
}

// values returns the field values of a record. Every separator opens a
// value; a missing value between two separators is empty.
func (r *recordAST) values() ([]string, error) {
	var values []string
	open := false
	for _, tok := range r.Tokens {
		if tok == "," {
			values = append(values, "")
			open = true
			continue
		}
		if !open {
			return nil, fmt.Errorf("%s: record %s: missing separator before %q", r.Pos, strings.TrimSpace(r.Type), strings.TrimSpace(tok))
		}
		values[len(values)-1] = strings.TrimSpace(tok)
		open = false
	}
	return values, nil
}

func parse(filename string, src []byte) (*fileAST, error) {
	return parser.ParseBytes(filename, src)
}
