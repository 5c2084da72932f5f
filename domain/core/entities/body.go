package entities

import (
	"regexp"
	"strings"
	"time"

	"nodestand-backend/domain/core/valueobjects"
	pkgerrors "nodestand-backend/pkg/errors"
)

const (
	MaxTitleLength     = 140
	MaxQualifierLength = 140
	MaxTextLength      = 20000
)

// Content is the user-editable part of a body.
type Content struct {
	Title     string
	Qualifier string
	Text      string
	URL       string
}

// MajorVersion groups every body that descends from the first body of a lineage.
type MajorVersion struct {
	BodyID   valueobjects.BodyID   `json:"bodyId"`
	StableID valueobjects.StableID `json:"stableId"`
}

// Citation is an inline {{[majorVersionStableId]text}} marker.
type Citation struct {
	StableID string `json:"stableId"`
	Text     string `json:"text"`
}

var citationPattern = regexp.MustCompile(`\{\{\[([^\]]+)\]([^}]*)\}\}`)

// Body holds the content of exactly one node.
type Body struct {
	id           valueobjects.BodyID
	kind         Kind
	content      Content
	authorID     string
	majorVersion MajorVersion
	public       bool
	createdAt    time.Time
}

// NewBody starts a new major version.
func NewBody(kind Kind, content Content, authorID string) (*Body, error) {
	if authorID == "" {
		return nil, pkgerrors.InvalidInput("author", "author is required")
	}
	content, err := normalizeContent(kind, content)
	if err != nil {
		return nil, err
	}
	id := valueobjects.NewBodyID()
	return &Body{
		id:           id,
		kind:         kind,
		content:      content,
		authorID:     authorID,
		majorVersion: MajorVersion{BodyID: id, StableID: valueobjects.NewStableID()},
		createdAt:    time.Now(),
	}, nil
}

// ReconstructBody rebuilds a body from stored data.
func ReconstructBody(
	id valueobjects.BodyID,
	kind Kind,
	content Content,
	authorID string,
	majorVersion MajorVersion,
	public bool,
	createdAt time.Time,
) *Body {
	return &Body{
		id:           id,
		kind:         kind,
		content:      content,
		authorID:     authorID,
		majorVersion: majorVersion,
		public:       public,
		createdAt:    createdAt,
	}
}

func (b *Body) ID() valueobjects.BodyID { return b.id }
func (b *Body) Kind() Kind { return b.kind }
func (b *Body) Content() Content { return b.content }
func (b *Body) Title() string { return b.content.Title }
func (b *Body) Qualifier() string { return b.content.Qualifier }
func (b *Body) Text() string { return b.content.Text }
func (b *Body) URL() string { return b.content.URL }
func (b *Body) AuthorID() string { return b.authorID }
func (b *Body) MajorVersion() MajorVersion { return b.majorVersion }
func (b *Body) CreatedAt() time.Time { return b.createdAt }

// IsPublic is true once the owning node has been published.
func (b *Body) IsPublic() bool {
	return b.public
}

// IsEditable is the per-author edit policy. Every author may edit for now.
func (b *Body) IsEditable() bool {
	return true
}

// Citations parses the inline citation markers of the text, in order.
func (b *Body) Citations() []Citation {
	if b.kind.HasURL() {
		return nil
	}
	matches := citationPattern.FindAllStringSubmatch(b.content.Text, -1)
	citations := make([]Citation, 0, len(matches))
	for _, m := range matches {
		citations = append(citations, Citation{StableID: m[1], Text: m[2]})
	}
	return citations
}

func (b *Body) setContent(c Content) error {
	if b.public {
		return pkgerrors.ErrMustDraftFirst.Clone().WithDetail("body_id", b.id.String())
	}
	c, err := normalizeContent(b.kind, c)
	if err != nil {
		return err
	}
	b.content = c
	return nil
}

// draftCopy produces a private copy in the same major version.
func (b *Body) draftCopy(authorID string) *Body {
	return &Body{
		id:           valueobjects.NewBodyID(),
		kind:         b.kind,
		content:      b.content,
		authorID:     authorID,
		majorVersion: b.majorVersion,
		createdAt:    time.Now(),
	}
}

func normalizeContent(kind Kind, c Content) (Content, error) {
	c.Title = strings.TrimSpace(c.Title)
	c.Qualifier = strings.TrimSpace(c.Qualifier)
	c.URL = strings.TrimSpace(c.URL)

	if c.Title == "" {
		return c, pkgerrors.InvalidInput("title", "title is required")
	}
	if len(c.Title) > MaxTitleLength {
		return c, pkgerrors.InvalidInput("title", "title is too long")
	}
	if len(c.Qualifier) > MaxQualifierLength {
		return c, pkgerrors.InvalidInput("qualifier", "qualifier is too long")
	}
	if len(c.Text) > MaxTextLength {
		return c, pkgerrors.InvalidInput("body", "body is too long")
	}
	if kind.HasURL() {
		c.Text = ""
	} else {
		c.URL = ""
	}
	return c, nil
}
