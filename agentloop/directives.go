package agentloop

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

// CompletionMarker signals that the model considers every task done.
const CompletionMarker = "<promise>COMPLETE</promise>"

const (
	fileCloseTag   = "<</FILE>>"
	commitCloseTag = "<</COMMIT_MSG>>"
)

var (
	readTagRe    = regexp.MustCompile(`<<READ\s+path="([^"]+)"\s*>>`)
	fileOpenRe   = regexp.MustCompile(`<<FILE\s+path="([^"]+)"\s*>>`)
	commitOpenRe = regexp.MustCompile(`<<COMMIT_MSG>>`)
)

// DirectiveKind names a directive variant.
type DirectiveKind string

const (
	DirectiveRead   DirectiveKind = "read"
	DirectiveWrite  DirectiveKind = "write"
	DirectiveCommit DirectiveKind = "commit"
)

// Directive is one side effect requested by the model. The variants are
// ReadRequest, WriteRequest and CommitRequest.
type Directive interface {
	Kind() DirectiveKind
	// Describe returns a short label for logs and observations.
	Describe() string
	sealed()
}

// ReadRequest asks for the contents of a file.
type ReadRequest struct {
	Path string `json:"path"`
}

// WriteRequest replaces a file's contents.
type WriteRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// CommitRequest asks for every pending change to be committed.
type CommitRequest struct {
	Message string `json:"message"`
}

func (ReadRequest) Kind() DirectiveKind   { return DirectiveRead }
func (WriteRequest) Kind() DirectiveKind  { return DirectiveWrite }
func (CommitRequest) Kind() DirectiveKind { return DirectiveCommit }

func (r ReadRequest) Describe() string  { return "READ " + r.Path }
func (w WriteRequest) Describe() string { return "FILE " + w.Path }
func (c CommitRequest) Describe() string {
	return fmt.Sprintf("COMMIT_MSG %q", firstLine(c.Message))
}

func (ReadRequest) sealed()   {}
func (WriteRequest) sealed()  {}
func (CommitRequest) sealed() {}

// DirectiveBatch holds every directive found in one reply. Writes and reads
// keep document order.
type DirectiveBatch struct {
	Writes []WriteRequest
	Reads  []ReadRequest
	Commit *CommitRequest
}

// Empty reports whether the reply contained no directives.
func (b DirectiveBatch) Empty() bool {
	return len(b.Writes) == 0 && len(b.Reads) == 0 && b.Commit == nil
}

// Directives returns the batch in execution order: writes, then reads so they
// observe this reply's writes, then the commit so it includes them.
func (b DirectiveBatch) Directives() []Directive {
	out := make([]Directive, 0, len(b.Writes)+len(b.Reads)+1)
	for _, w := range b.Writes {
		out = append(out, w)
	}
	for _, r := range b.Reads {
		out = append(out, r)
	}
	if b.Commit != nil {
		out = append(out, *b.Commit)
	}
	return out
}

// Signature returns a stable digest of the batch, or "" when it is empty.
func (b DirectiveBatch) Signature() string {
	if b.Empty() {
		return ""
	}
	h := sha256.New()
	for _, d := range b.Directives() {
		switch v := d.(type) {
		case WriteRequest:
			fmt.Fprintf(h, "W\x00%s\x00%d\x00%s\x00", v.Path, len(v.Content), v.Content)
		case ReadRequest:
			fmt.Fprintf(h, "R\x00%s\x00", v.Path)
		case CommitRequest:
			fmt.Fprintf(h, "C\x00%s\x00", v.Message)
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}

// ParseDirectives extracts directives from a model reply. Text that is not a
// well-formed tag is ignored. A FILE tag without a closing tag, or followed
// by another FILE tag before its close, produces nothing. READ and COMMIT_MSG
// tags inside a FILE body are file content.
func ParseDirectives(text string) DirectiveBatch {
	var batch DirectiveBatch

	masked := []byte(text)
	pos := 0
	for pos < len(text) {
		loc := fileOpenRe.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		openStart, openEnd := pos+loc[0], pos+loc[1]
		path := text[pos+loc[2] : pos+loc[3]]

		rest := text[openEnd:]
		closeIdx := strings.Index(rest, fileCloseTag)
		if closeIdx < 0 {
			break
		}
		if next := fileOpenRe.FindStringIndex(rest); next != nil && next[0] < closeIdx {
			pos = openEnd + next[0]
			continue
		}

		content := rest[:closeIdx]
		if strings.HasPrefix(content, "\r\n") {
			content = content[2:]
		} else if strings.HasPrefix(content, "\n") {
			content = content[1:]
		}
		batch.Writes = append(batch.Writes, WriteRequest{Path: path, Content: content})

		end := openEnd + closeIdx + len(fileCloseTag)
		for i := openStart; i < end; i++ {
			masked[i] = ' '
		}
		pos = end
	}

	outside := string(masked)
	for _, m := range readTagRe.FindAllStringSubmatch(outside, -1) {
		batch.Reads = append(batch.Reads, ReadRequest{Path: m[1]})
	}

	if loc := commitOpenRe.FindStringIndex(outside); loc != nil {
		rest := outside[loc[1]:]
		if closeIdx := strings.Index(rest, commitCloseTag); closeIdx >= 0 {
			if msg := strings.TrimSpace(rest[:closeIdx]); msg != "" {
				batch.Commit = &CommitRequest{Message: msg}
			}
		}
	}

	return batch
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
