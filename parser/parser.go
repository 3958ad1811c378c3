package parser

import (
	"bytes"
	"context"
	"io"
	"strings"

	"github.com/robinvdvleuten/beancount/ast"
)

// Parser turns a token stream produced by Lexer into an *ast.AST. It holds no
// state beyond the cursor into the token slice, so it never re-scans the
// source: every token was already classified up front.
type Parser struct {
	source   []byte
	filename string
	tokens   []Token
	pos      int
	interner *Interner
}

// NewParser builds a Parser over an already-tokenized source buffer.
func NewParser(source []byte, tokens []Token, filename string, interner *Interner) *Parser {
	return &Parser{
		source:   source,
		filename: filename,
		tokens:   tokens,
		interner: interner,
	}
}

// directiveNode is satisfied by every directive type: it can carry a trailing
// inline comment, attached metadata, and reports its own file position.
type directiveNode interface {
	ast.WithComment
	ast.WithMetadata
	ast.Positioned
}

// finishDirective attaches an optional trailing inline comment and an
// optional following indented metadata block to a freshly parsed directive.
func (p *Parser) finishDirective(d directiveNode) error {
	line := d.Position().Line

	if !p.isAtEnd() && p.peek().Type == COMMENT && p.peek().Line == line {
		d.SetComment(p.parseComment())
	}

	if !p.isAtEnd() && p.peek().Line > line && p.peek().Column > 1 {
		d.AddMetadata(p.parseMetadataFromLine(line)...)
	}

	return nil
}

// parseComment consumes the current COMMENT token and builds an ast.Comment
// from it. The token's text includes the trailing newline (see scanComment),
// which is trimmed so Content matches the semicolon-prefixed comment text.
func (p *Parser) parseComment() *ast.Comment {
	tok := p.advance()
	content := strings.TrimRight(tok.String(p.source), "\n")
	return &ast.Comment{
		Pos:     tokenPosition(tok, p.filename),
		Content: content,
		Type:    ast.StandaloneComment,
	}
}

// parseOption parses: option STRING STRING
func (p *Parser) parseOption(pos ast.Position) (*ast.Option, error) {
	p.consume(OPTION, "expected 'option'")

	name, err := p.parseString()
	if err != nil {
		return nil, err
	}

	value, err := p.parseString()
	if err != nil {
		return nil, err
	}

	return &ast.Option{Pos: pos, Name: name, Value: value}, nil
}

// parseInclude parses: include STRING
func (p *Parser) parseInclude(pos ast.Position) (*ast.Include, error) {
	p.consume(INCLUDE, "expected 'include'")

	filename, err := p.parseString()
	if err != nil {
		return nil, err
	}

	return &ast.Include{Pos: pos, Filename: filename.Value}, nil
}

// parsePlugin parses: plugin STRING [STRING]
func (p *Parser) parsePlugin(pos ast.Position) (*ast.Plugin, error) {
	p.consume(PLUGIN, "expected 'plugin'")

	name, err := p.parseString()
	if err != nil {
		return nil, err
	}

	plugin := &ast.Plugin{Pos: pos, Name: name.Value}

	if p.check(STRING) {
		config, err := p.parseString()
		if err != nil {
			return nil, err
		}
		plugin.Config = config.Value
	}

	return plugin, nil
}

// parsePushtag parses: pushtag TAG
func (p *Parser) parsePushtag(pos ast.Position) (*ast.Pushtag, error) {
	p.consume(PUSHTAG, "expected 'pushtag'")

	tag, err := p.parseTag()
	if err != nil {
		return nil, err
	}

	return &ast.Pushtag{Pos: pos, Tag: tag}, nil
}

// parsePoptag parses: poptag TAG
func (p *Parser) parsePoptag(pos ast.Position) (*ast.Poptag, error) {
	p.consume(POPTAG, "expected 'poptag'")

	tag, err := p.parseTag()
	if err != nil {
		return nil, err
	}

	return &ast.Poptag{Pos: pos, Tag: tag}, nil
}

// parsePushmeta parses: pushmeta KEY: VALUE
func (p *Parser) parsePushmeta(pos ast.Position) (*ast.Pushmeta, error) {
	p.consume(PUSHMETA, "expected 'pushmeta'")

	keyTok := p.expect(IDENT, "expected metadata key")
	p.consume(COLON, "expected ':'")

	value := p.parseMetadataValue()

	return &ast.Pushmeta{Pos: pos, Key: keyTok.String(p.source), Value: value.String()}, nil
}

// parsePopmeta parses: popmeta KEY:
func (p *Parser) parsePopmeta(pos ast.Position) (*ast.Popmeta, error) {
	p.consume(POPMETA, "expected 'popmeta'")

	keyTok := p.expect(IDENT, "expected metadata key")
	p.consume(COLON, "expected ':'")

	return &ast.Popmeta{Pos: pos, Key: keyTok.String(p.source)}, nil
}

// parsePnl parses: pnl FROM_ACCOUNT TO_ACCOUNT
func (p *Parser) parsePnl(pos ast.Position) (*ast.Pnl, error) {
	p.consume(PNL, "expected 'pnl'")

	from, err := p.parseAccount()
	if err != nil {
		return nil, err
	}

	to, err := p.parseAccount()
	if err != nil {
		return nil, err
	}

	return &ast.Pnl{Pos: pos, FromAccount: from, ToAccount: to}, nil
}

// parseQuery parses: query STRING STRING
// The second string is stored verbatim as the query's contents; it is never
// evaluated since no query language is implemented.
func (p *Parser) parseQuery(pos ast.Position) (*ast.Query, error) {
	p.consume(QUERY, "expected 'query'")

	name, err := p.parseString()
	if err != nil {
		return nil, err
	}

	contents, err := p.parseString()
	if err != nil {
		return nil, err
	}

	return &ast.Query{Pos: pos, Name: name, Contents: contents.Value}, nil
}

// parseFile drives the top-level dispatch loop: every line either starts with
// a DATE (and is handed to the dated-directive dispatch below), a keyword
// that introduces one of the file-scoped directives, or is pure trivia
// (a comment or a blank line).
func (p *Parser) parseFile() (*ast.AST, error) {
	tree := &ast.AST{}

	for !p.isAtEnd() {
		tok := p.peek()

		switch tok.Type {
		case NEWLINE:
			tree.BlankLines = append(tree.BlankLines, &ast.BlankLine{Pos: tokenPosition(tok, p.filename)})
			p.advance()
			continue

		case COMMENT:
			tree.Comments = append(tree.Comments, p.parseComment())
			continue

		case DATE:
			pos := p.tokenPositionFromPeek()
			date, err := p.parseDate()
			if err != nil {
				return nil, err
			}

			dir, err := p.parseDatedDirective(pos, date)
			if err != nil {
				return nil, err
			}
			tree.Directives = append(tree.Directives, dir)
			continue

		case OPTION:
			pos := p.tokenPositionFromPeek()
			opt, err := p.parseOption(pos)
			if err != nil {
				return nil, err
			}
			tree.Options = append(tree.Options, opt)
			continue

		case INCLUDE:
			pos := p.tokenPositionFromPeek()
			inc, err := p.parseInclude(pos)
			if err != nil {
				return nil, err
			}
			tree.Includes = append(tree.Includes, inc)
			continue

		case PLUGIN:
			pos := p.tokenPositionFromPeek()
			plugin, err := p.parsePlugin(pos)
			if err != nil {
				return nil, err
			}
			tree.Plugins = append(tree.Plugins, plugin)
			continue

		case PUSHTAG:
			pos := p.tokenPositionFromPeek()
			pt, err := p.parsePushtag(pos)
			if err != nil {
				return nil, err
			}
			tree.Pushtags = append(tree.Pushtags, pt)
			continue

		case POPTAG:
			pos := p.tokenPositionFromPeek()
			pt, err := p.parsePoptag(pos)
			if err != nil {
				return nil, err
			}
			tree.Poptags = append(tree.Poptags, pt)
			continue

		case PUSHMETA:
			pos := p.tokenPositionFromPeek()
			pm, err := p.parsePushmeta(pos)
			if err != nil {
				return nil, err
			}
			tree.Pushmetas = append(tree.Pushmetas, pm)
			continue

		case POPMETA:
			pos := p.tokenPositionFromPeek()
			pm, err := p.parsePopmeta(pos)
			if err != nil {
				return nil, err
			}
			tree.Popmetas = append(tree.Popmetas, pm)
			continue

		case PNL:
			pos := p.tokenPositionFromPeek()
			pnl, err := p.parsePnl(pos)
			if err != nil {
				return nil, err
			}
			tree.Pnls = append(tree.Pnls, pnl)
			continue

		case QUERY:
			pos := p.tokenPositionFromPeek()
			query, err := p.parseQuery(pos)
			if err != nil {
				return nil, err
			}
			tree.Queries = append(tree.Queries, query)
			continue

		default:
			return nil, p.errorAtToken(tok, "unexpected token %s at start of line", tok.Type)
		}
	}

	return tree, nil
}

// parseDatedDirective dispatches a DATE-led line to the matching directive
// parser based on the keyword that follows the date.
func (p *Parser) parseDatedDirective(pos ast.Position, date *ast.Date) (ast.Directive, error) {
	tok := p.peek()

	switch tok.Type {
	case BALANCE:
		return p.parseBalance(pos, date)
	case OPEN:
		return p.parseOpen(pos, date)
	case CLOSE:
		return p.parseClose(pos, date)
	case COMMODITY:
		return p.parseCommodity(pos, date)
	case PAD:
		return p.parsePad(pos, date)
	case NOTE:
		return p.parseNote(pos, date)
	case DOCUMENT:
		return p.parseDocument(pos, date)
	case PRICE:
		return p.parsePrice(pos, date)
	case EVENT:
		return p.parseEvent(pos, date)
	case CUSTOM:
		return p.parseCustom(pos, date)
	case TXN, ASTERISK, EXCLAIM, STRING:
		return p.parseTransaction(pos, date)
	default:
		return nil, p.errorAtToken(tok, "unexpected token %s after date", tok.Type)
	}
}

// parse tokenizes source and runs the dispatch loop, then applies file-order
// push/pop directives and sorts the resulting directives chronologically.
func parse(filename string, source []byte) (*ast.AST, error) {
	lexer := NewLexer(source, filename)
	tokens, err := lexer.ScanAll()
	if err != nil {
		return nil, err
	}

	p := NewParser(source, tokens, filename, lexer.Interner())
	tree, err := p.parseFile()
	if err != nil {
		return nil, err
	}

	if err := ast.ApplyPushPopDirectives(tree); err != nil {
		return nil, err
	}

	return tree, ast.SortDirectives(tree)
}

// Parse parses AST from an io.Reader.
func Parse(ctx context.Context, r io.Reader) (*ast.AST, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBytesWithFilename(ctx, "", data)
}

// ParseString parses AST from a string.
func ParseString(ctx context.Context, str string) (*ast.AST, error) {
	return ParseBytesWithFilename(ctx, "", []byte(str))
}

// ParseBytes parses AST from bytes.
func ParseBytes(ctx context.Context, data []byte) (*ast.AST, error) {
	return ParseBytesWithFilename(ctx, "", data)
}

// ParseBytesWithFilename parses AST from bytes with a filename for position tracking.
// The filename will be included in position information in the AST for better error reporting.
func ParseBytesWithFilename(ctx context.Context, filename string, data []byte) (*ast.AST, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	return parse(filename, bytes.Clone(data))
}
