package agentloop

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDirectivesWrites(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []WriteRequest
	}{
		{
			name: "single with leading newline stripped",
			text: "Here you go:\n<<FILE path=\"main.go\">>\npackage main\n<</FILE>>\nDone.",
			want: []WriteRequest{{Path: "main.go", Content: "package main\n"}},
		},
		{
			name: "crlf leading newline stripped once",
			text: "<<FILE path=\"a.txt\">>\r\n\r\nbody<</FILE>>",
			want: []WriteRequest{{Path: "a.txt", Content: "\r\nbody"}},
		},
		{
			name: "only one leading newline stripped",
			text: "<<FILE path=\"a.txt\">>\n\nbody\n<</FILE>>",
			want: []WriteRequest{{Path: "a.txt", Content: "\nbody\n"}},
		},
		{
			name: "empty content",
			text: `<<FILE path="empty.txt">><</FILE>>`,
			want: []WriteRequest{{Path: "empty.txt", Content: ""}},
		},
		{
			name: "multiple in document order",
			text: "<<FILE path=\"b.txt\">>B<</FILE>> text <<FILE path=\"a.txt\">>A<</FILE>>",
			want: []WriteRequest{{Path: "b.txt", Content: "B"}, {Path: "a.txt", Content: "A"}},
		},
		{
			name: "missing close produces nothing",
			text: "<<FILE path=\"a.txt\">>\nhello\n",
			want: nil,
		},
		{
			name: "open followed by open drops the first",
			text: "<<FILE path=\"a.txt\">>oops <<FILE path=\"b.txt\">>real<</FILE>>",
			want: []WriteRequest{{Path: "b.txt", Content: "real"}},
		},
		{
			name: "non greedy",
			text: "<<FILE path=\"a.txt\">>1<</FILE>>between<</FILE>>",
			want: []WriteRequest{{Path: "a.txt", Content: "1"}},
		},
		{
			name: "malformed open tag ignored",
			text: "<<FILE path=a.txt>>x<</FILE>>",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch := ParseDirectives(tt.text)
			assert.Equal(t, tt.want, batch.Writes)
		})
	}
}

func TestParseDirectivesNWrites(t *testing.T) {
	var sb strings.Builder
	var want []WriteRequest
	for i := 0; i < 7; i++ {
		path := fmt.Sprintf("dir%d/file%d.txt", i%3, i)
		content := fmt.Sprintf("line %d\nsecond line\n", i)
		fmt.Fprintf(&sb, "Step %d\n<<FILE path=%q>>\n%s<</FILE>>\n", i, path, content)
		want = append(want, WriteRequest{Path: path, Content: content})
	}

	batch := ParseDirectives(sb.String())
	assert.Equal(t, want, batch.Writes)
}

func TestParseDirectivesReads(t *testing.T) {
	batch := ParseDirectives(`First <<READ path="go.mod">> then <<READ path="cmd/main.go">> and <<READ path="">>`)
	assert.Equal(t, []ReadRequest{{Path: "go.mod"}, {Path: "cmd/main.go"}}, batch.Reads)
}

func TestParseDirectivesCommit(t *testing.T) {
	tests := []struct {
		name string
		text string
		want *CommitRequest
	}{
		{"trimmed", "<<COMMIT_MSG>>\n  Add parser \n<</COMMIT_MSG>>", &CommitRequest{Message: "Add parser"}},
		{"first wins", "<<COMMIT_MSG>>one<</COMMIT_MSG>><<COMMIT_MSG>>two<</COMMIT_MSG>>", &CommitRequest{Message: "one"}},
		{"empty is none", "<<COMMIT_MSG>>   <</COMMIT_MSG>>", nil},
		{"unterminated", "<<COMMIT_MSG>>never closed", nil},
		{"multi line", "<<COMMIT_MSG>>Subject\n\nBody<</COMMIT_MSG>>", &CommitRequest{Message: "Subject\n\nBody"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDirectives(tt.text).Commit)
		})
	}
}

func TestParseDirectivesTagsInsideFileAreContent(t *testing.T) {
	text := "<<FILE path=\"prompt.md\">>\nUse <<READ path=\"x\">> and <<COMMIT_MSG>>msg<</COMMIT_MSG>>\n<</FILE>>"
	batch := ParseDirectives(text)

	require.Len(t, batch.Writes, 1)
	assert.Equal(t, "Use <<READ path=\"x\">> and <<COMMIT_MSG>>msg<</COMMIT_MSG>>\n", batch.Writes[0].Content)
	assert.Empty(t, batch.Reads)
	assert.Nil(t, batch.Commit)
}

func TestParseDirectivesNone(t *testing.T) {
	for _, text := range []string{"", "just prose", "<<READ>>", "<<FILE>>x<</FILE>>", CompletionMarker} {
		assert.True(t, ParseDirectives(text).Empty(), text)
	}
}

func TestDirectiveBatchOrder(t *testing.T) {
	text := `<<READ path="a.txt">><<COMMIT_MSG>>c<</COMMIT_MSG>><<FILE path="a.txt">>x<</FILE>>`
	batch := ParseDirectives(text)

	var kinds []DirectiveKind
	for _, d := range batch.Directives() {
		kinds = append(kinds, d.Kind())
	}
	assert.Equal(t, []DirectiveKind{DirectiveWrite, DirectiveRead, DirectiveCommit}, kinds)
}

func TestDirectiveBatchSignature(t *testing.T) {
	a := ParseDirectives(`<<READ path="a.txt">>`)
	b := ParseDirectives(`Let me look again. <<READ path="a.txt">>`)
	c := ParseDirectives(`<<READ path="b.txt">>`)

	assert.Equal(t, "", DirectiveBatch{}.Signature())
	assert.NotEmpty(t, a.Signature())
	assert.Equal(t, a.Signature(), b.Signature())
	assert.NotEqual(t, a.Signature(), c.Signature())
}

func TestDirectiveDescribe(t *testing.T) {
	assert.Equal(t, "READ a.txt", ReadRequest{Path: "a.txt"}.Describe())
	assert.Equal(t, "FILE a.txt", WriteRequest{Path: "a.txt"}.Describe())
	assert.Equal(t, `COMMIT_MSG "Subject"`, CommitRequest{Message: "Subject\nbody"}.Describe())
}
