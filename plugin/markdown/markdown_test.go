package markdown

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/bookcircle/plugin/tagging"
)

func TestRenderHTML(t *testing.T) {
	svc := NewService(WithTagExtension())
	resolver := tagging.NewResolver([]tagging.TaggingRecord{
		{Slug: "sara", Name: "Sara", Kind: tagging.KindUser, EntityID: "u-1"},
		{Slug: "tolkien", Name: "J.R.R. Tolkien", Kind: tagging.KindEntity, EntityID: "a-7", EntitySubtype: "author"},
	}, tagging.RenderOptions{})

	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			name:   "hashtag",
			source: "Reading #Dune tonight",
			want:   "<p>Reading <a class=\"tag tag-topic\" href=\"/tags/dune\">#Dune</a> tonight</p>\n",
		},
		{
			name:   "resolved mentions",
			source: "Thanks @sara, loved @tolkien",
			want:   "<p>Thanks <a class=\"tag tag-user\" href=\"/profile/u-1\">@sara</a>, loved <a class=\"tag tag-entity\" href=\"/authors/a-7\">@tolkien</a></p>\n",
		},
		{
			name:   "unresolved mention falls back to user",
			source: "hi @bob",
			want:   "<p>hi <a class=\"tag tag-user\" href=\"/profile/bob\">@bob</a></p>\n",
		},
		{
			name:   "code span is left alone",
			source: "use `@decorator` and `#define`",
			want:   "<p>use <code>@decorator</code> and <code>#define</code></p>\n",
		},
		{
			name:   "bare trigger",
			source: "a @ b # c",
			want:   "<p>a @ b # c</p>\n",
		},
		{
			name:   "heading is not a tag",
			source: "# Title #tag",
			want:   "<h1>Title <a class=\"tag tag-topic\" href=\"/tags/tag\">#tag</a></h1>\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html, err := svc.RenderHTML([]byte(tt.source), resolver)
			require.NoError(t, err)
			assert.Equal(t, tt.want, html)
		})
	}
}

func TestRenderHTMLMentionsAsText(t *testing.T) {
	svc := NewService(WithTagExtension(), WithRenderOptions(tagging.RenderOptions{UnresolvedMention: tagging.MentionAsText}))

	html, err := svc.RenderHTML([]byte("hi @bob #books"), nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>hi @bob <a class=\"tag tag-topic\" href=\"/tags/books\">#books</a></p>\n", html)
}

func TestRenderHTMLUnlinkableKind(t *testing.T) {
	svc := NewService(WithTagExtension())
	resolver := tagging.NewResolver([]tagging.TaggingRecord{
		{Slug: "coauthors", Name: "Co-authors", Kind: tagging.KindCollaborator},
	}, tagging.RenderOptions{})

	html, err := svc.RenderHTML([]byte("with @coauthors"), resolver)
	require.NoError(t, err)
	assert.Equal(t, "<p>with <span class=\"tag tag-collaborator\">@coauthors</span></p>\n", html)
}

func TestRenderHTMLWithoutExtension(t *testing.T) {
	svc := NewService()
	html, err := svc.RenderHTML([]byte("plain #text"), nil)
	require.NoError(t, err)
	assert.Equal(t, "<p>plain #text</p>\n", html)
	assert.Nil(t, svc.ExtractTags([]byte("plain #text"), nil))
}

func TestExtractTags(t *testing.T) {
	svc := NewService(WithTagExtension())
	source := "#fantasy picks\n\n```\n#notatag\n```\n\nask @sam"

	refs := svc.ExtractTags([]byte(source), nil)
	want := []tagging.TagRef{
		{Kind: tagging.KindTopic, Name: "fantasy", Slug: "fantasy", Span: tagging.Span{Start: 0, End: 8}, Href: "/tags/fantasy", Icon: "hash"},
		{Kind: tagging.KindUser, Name: "sam", Slug: "sam", Span: tagging.Span{Start: 38, End: 42}, Href: "/profile/sam", Icon: "avatar"},
	}
	if diff := cmp.Diff(want, refs, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("ExtractTags() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "@sam", source[refs[1].Span.Start:refs[1].Span.End])
}
