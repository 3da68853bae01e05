// Package lsp serves assembler diagnostics for Krakatau assembly files
// over the Language Server Protocol.
package lsp

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	"github.com/dhamidi/krak/asm"
	"github.com/dhamidi/krak/classfile"

	_ "github.com/tliron/commonlog/simple"
)

const lsName = "krak"

var log = commonlog.GetLogger("krak.lsp")

type Server struct {
	handler protocol.Handler
	server  *server.Server
	version string

	mu   sync.Mutex
	docs map[protocol.DocumentUri]string
}

func NewServer(version string) *Server {
	ls := &Server{
		version: version,
		docs:    map[protocol.DocumentUri]string{},
	}

	ls.handler = protocol.Handler{
		Initialize:             ls.initialize,
		Initialized:            ls.initialized,
		Shutdown:               ls.shutdown,
		SetTrace:               ls.setTrace,
		TextDocumentDidOpen:    ls.textDocumentDidOpen,
		TextDocumentDidChange:  ls.textDocumentDidChange,
		TextDocumentDidClose:   ls.textDocumentDidClose,
		TextDocumentDidSave:    ls.textDocumentDidSave,
		TextDocumentCompletion: ls.textDocumentCompletion,
	}

	ls.server = server.NewServer(&ls.handler, lsName, false)

	return ls
}

func (ls *Server) RunStdio() error {
	return ls.server.RunStdio()
}

func (ls *Server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	capabilities := ls.handler.CreateServerCapabilities()

	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    syncKindPtr(protocol.TextDocumentSyncKindFull),
		Save: &protocol.SaveOptions{
			IncludeText: boolPtr(true),
		},
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &ls.version,
		},
	}, nil
}

func (ls *Server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Info("client initialized")
	return nil
}

func (ls *Server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (ls *Server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (ls *Server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	ls.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (ls *Server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change := params.ContentChanges[len(params.ContentChanges)-1]
	if whole, ok := change.(protocol.TextDocumentContentChangeEventWhole); ok {
		ls.update(ctx, params.TextDocument.URI, whole.Text)
	}
	return nil
}

func (ls *Server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	ls.mu.Lock()
	delete(ls.docs, params.TextDocument.URI)
	ls.mu.Unlock()

	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (ls *Server) textDocumentDidSave(ctx *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	if params.Text != nil {
		ls.update(ctx, params.TextDocument.URI, *params.Text)
		return nil
	}
	ls.mu.Lock()
	text, ok := ls.docs[params.TextDocument.URI]
	ls.mu.Unlock()
	if ok {
		ls.update(ctx, params.TextDocument.URI, text)
	}
	return nil
}

func (ls *Server) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	ls.mu.Lock()
	ls.docs[uri] = text
	ls.mu.Unlock()

	diagnostics := Diagnose(uri, text)
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// Diagnose assembles text and reports one error per class that failed.
// Secondary notes become related information on the same document.
func Diagnose(uri protocol.DocumentUri, text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	source := lsName
	severity := protocol.DiagnosticSeverityError

	for _, res := range asm.Assemble(text) {
		if res.Err == nil {
			continue
		}
		err := res.Err
		d := protocol.Diagnostic{
			Range:    noteRange(err.Source, err.Primary),
			Severity: &severity,
			Source:   &source,
			Message:  err.Primary.Message,
		}
		for _, n := range err.Notes {
			d.RelatedInformation = append(d.RelatedInformation, protocol.DiagnosticRelatedInformation{
				Location: protocol.Location{URI: uri, Range: noteRange(err.Source, n)},
				Message:  n.Message,
			})
		}
		diagnostics = append(diagnostics, d)
	}
	return diagnostics
}

func noteRange(src string, n asm.Note) protocol.Range {
	end := max(n.End, n.Start)
	return protocol.Range{
		Start: position(src, n.Start),
		End:   position(src, end),
	}
}

// position converts a byte offset into a zero-based line and a column
// counted in UTF-16 code units.
func position(src string, offset int) protocol.Position {
	offset = min(max(offset, 0), len(src))
	lineStart := strings.LastIndexByte(src[:offset], '\n') + 1

	var col int
	for _, r := range src[lineStart:offset] {
		if r >= 0x10000 {
			col += 2
		} else {
			col++
		}
	}
	return protocol.Position{
		Line:      protocol.UInteger(strings.Count(src[:lineStart], "\n")),
		Character: protocol.UInteger(col),
	}
}

var directives = []string{
	".annotationdefault", ".attribute", ".bootstrap", ".bootstrapmethods",
	".catch", ".class", ".code", ".const", ".constantvalue", ".deprecated",
	".enclosing", ".end", ".exceptions", ".field", ".fieldattributes",
	".implements", ".innerclasses", ".linenumbertable", ".localvariabletable",
	".localvariabletypetable", ".method", ".methodparameters", ".runtime",
	".signature", ".sourcedebugextension", ".sourcefile", ".stack",
	".stackmaptable", ".super", ".synthetic", ".version",
}

func (ls *Server) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	ls.mu.Lock()
	text, ok := ls.docs[params.TextDocument.URI]
	ls.mu.Unlock()
	if !ok {
		return nil, nil
	}

	prefix := wordBefore(text, int(params.Position.Line), int(params.Position.Character))
	items := Completions(prefix)
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

// Completions lists the directives or instruction mnemonics starting with
// prefix.
func Completions(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	if strings.HasPrefix(prefix, ".") {
		kind := protocol.CompletionItemKindKeyword
		for _, d := range directives {
			if strings.HasPrefix(d, prefix) {
				items = append(items, protocol.CompletionItem{Label: d, Kind: &kind})
			}
		}
		return items
	}
	if prefix == "" {
		return nil
	}

	kind := protocol.CompletionItemKindFunction
	for op := classfile.Opcode(0); op <= classfile.MaxOpcode; op++ {
		if name := op.String(); strings.HasPrefix(name, prefix) {
			items = append(items, protocol.CompletionItem{Label: name, Kind: &kind})
		}
	}
	return items
}

// wordBefore returns the text between the last whitespace on the line and
// the cursor. character is in UTF-16 code units.
func wordBefore(text string, line, character int) string {
	lines := strings.Split(text, "\n")
	if line < 0 || line >= len(lines) {
		return ""
	}
	content := lines[line]

	end := 0
	for units := 0; end < len(content) && units < character; units++ {
		r, size := utf8.DecodeRuneInString(content[end:])
		if r >= 0x10000 {
			units++
		}
		end += size
	}
	start := strings.LastIndexAny(content[:end], " \t") + 1
	return content[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}

func syncKindPtr(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind {
	return &k
}
