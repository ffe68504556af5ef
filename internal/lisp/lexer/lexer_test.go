package lexer_test

import (
	"testing"

	"github.com/ptcrunner/ptcrunner/internal/lisp/lexer"
	"github.com/ptcrunner/ptcrunner/internal/lisp/token"
)

func lexAll(t *testing.T, src string) []token.Token {
	t.Helper()
	l := lexer.New(src)
	var out []token.Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("lexing %q: unexpected error: %v", src, err)
		}
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out
		}
	}
}

func lexErr(t *testing.T, src string) error {
	t.Helper()
	l := lexer.New(src)
	for {
		tok, err := l.NextToken()
		if err != nil {
			return err
		}
		if tok.Kind == token.EOF {
			t.Fatalf("lexing %q: expected an error, got none", src)
		}
	}
}

func TestLexerPunctuation(t *testing.T) {
	toks := lexAll(t, "( ) [ ] { } #{ '")
	kinds := []token.Kind{
		token.LParen, token.RParen, token.LBracket, token.RBracket,
		token.LBrace, token.RBrace, token.HashBrace, token.Quote, token.EOF,
	}
	if len(toks) != len(kinds) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(kinds))
	}
	for i, k := range kinds {
		if toks[i].Kind != k {
			t.Errorf("token %d: kind = %s, want %s", i, toks[i].Kind, k)
		}
	}
}

func TestLexerCommasAreWhitespace(t *testing.T) {
	toks := lexAll(t, "[1, 2, 3]")
	var ints []string
	for _, tok := range toks {
		if tok.Kind == token.Int {
			ints = append(ints, tok.Lexeme)
		}
	}
	if len(ints) != 3 {
		t.Fatalf("got %d ints, want 3: %v", len(ints), ints)
	}
}

func TestLexerSemicolonComment(t *testing.T) {
	toks := lexAll(t, "1 ; this is a comment\n2")
	var nums []string
	for _, tok := range toks {
		if tok.Kind == token.Int {
			nums = append(nums, tok.Lexeme)
		}
	}
	if len(nums) != 2 || nums[0] != "1" || nums[1] != "2" {
		t.Errorf("nums = %v, want [1 2]", nums)
	}
}

func TestLexerStringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\tc\"\\d"`)
	if toks[0].Kind != token.String {
		t.Fatalf("kind = %s, want STRING", toks[0].Kind)
	}
	want := "a\nb\tc\"\\d"
	if toks[0].Lexeme != want {
		t.Errorf("lexeme = %q, want %q", toks[0].Lexeme, want)
	}
}

func TestLexerUnterminatedStringErrors(t *testing.T) {
	if err := lexErr(t, `"unterminated`); err == nil {
		t.Error("expected an unterminated-string error")
	}
}

func TestLexerInvalidEscapeErrors(t *testing.T) {
	if err := lexErr(t, `"bad\qescape"`); err == nil {
		t.Error("expected an invalid-escape error")
	}
}

func TestLexerKeyword(t *testing.T) {
	toks := lexAll(t, ":foo :ns/bar")
	if toks[0].Kind != token.Keyword || toks[0].Lexeme != "foo" {
		t.Errorf("toks[0] = %+v, want Keyword foo", toks[0])
	}
	if toks[1].Kind != token.Keyword || toks[1].Lexeme != "ns/bar" {
		t.Errorf("toks[1] = %+v, want Keyword ns/bar", toks[1])
	}
}

func TestLexerStrayHashErrors(t *testing.T) {
	if err := lexErr(t, "#foo"); err == nil {
		t.Error("expected a stray '#' error")
	}
}

func TestLexerNumbers(t *testing.T) {
	toks := lexAll(t, "42 -7 3.14 -2.5 1e3 2.5e-2")
	wantKinds := []token.Kind{token.Int, token.Int, token.Float, token.Float, token.Float, token.Float, token.EOF}
	if len(toks) != len(wantKinds) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(wantKinds))
	}
	for i, k := range wantKinds {
		if toks[i].Kind != k {
			t.Errorf("token %d (%s): kind = %s, want %s", i, toks[i].Lexeme, toks[i].Kind, k)
		}
	}
}

func TestLexerInvalidNumberTrailingCharsErrors(t *testing.T) {
	if err := lexErr(t, "1foo"); err == nil {
		t.Error("expected an invalid-number error for 1foo")
	}
}

func TestLexerNegativeNumberVsSymbol(t *testing.T) {
	toks := lexAll(t, "-5 -foo")
	if toks[0].Kind != token.Int || toks[0].Lexeme != "-5" {
		t.Errorf("toks[0] = %+v, want Int -5", toks[0])
	}
	if toks[1].Kind != token.Symbol || toks[1].Lexeme != "-foo" {
		t.Errorf("toks[1] = %+v, want Symbol -foo", toks[1])
	}
}

func TestLexerSymbolWithNamespace(t *testing.T) {
	toks := lexAll(t, "data/items tool/search ->")
	if toks[0].Kind != token.Symbol || toks[0].Lexeme != "data/items" {
		t.Errorf("toks[0] = %+v", toks[0])
	}
	if toks[2].Kind != token.Symbol || toks[2].Lexeme != "->" {
		t.Errorf("toks[2] = %+v, want Symbol ->", toks[2])
	}
}

func TestLexerPositionsTrackLinesAndColumns(t *testing.T) {
	l := lexer.New("(foo\n  bar)")
	var positions []token.Position
	for {
		tok, err := l.NextToken()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.Kind == token.EOF {
			break
		}
		positions = append(positions, tok.Pos)
	}
	// "(foo\n  bar)" -> ( at line 1, foo at line 1, bar at line 2
	if positions[0].Line != 1 {
		t.Errorf("'(' line = %d, want 1", positions[0].Line)
	}
	if positions[2].Line != 2 {
		t.Errorf("'bar' line = %d, want 2", positions[2].Line)
	}
}
