package annotation

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/selah/core/bible"
)

// Anchor locates an annotation in the canon. It is embedded in every annotation type.
type Anchor struct {
	Ref        string `json:"ref" db:"ref"` // canonical, e.g. JHN.3.16
	Book       string `json:"book" db:"book"`
	Chapter    int    `json:"chapter" db:"chapter"`
	VerseStart int    `json:"verse_start" db:"verse_start"`
	VerseEnd   int    `json:"verse_end" db:"verse_end"`
}

func anchorFrom(ref bible.Reference) Anchor {
	return Anchor{
		Ref:        ref.String(),
		Book:       ref.Book,
		Chapter:    ref.Chapter,
		VerseStart: ref.VerseStart,
		VerseEnd:   ref.VerseEnd,
	}
}

type Bookmark struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"-" db:"user_id"`
	Anchor
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Highlight struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"-" db:"user_id"`
	Anchor
	Color     string    `json:"color" db:"color"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Note struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"-" db:"user_id"`
	Anchor
	Body      string    `json:"body" db:"body"`
	Private   bool      `json:"private" db:"private"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type NewBookmark struct {
	Ref string `json:"ref" validate:"required,ref"`
}

func (nb *NewBookmark) Validate(validate *validator.Validate) error { return validate.Struct(nb) }

type NewHighlight struct {
	Ref   string `json:"ref" validate:"required,ref"`
	Color string `json:"color" validate:"required,hexcolor_"`
}

func (nh *NewHighlight) Validate(validate *validator.Validate) error { return validate.Struct(nh) }

type NewNote struct {
	Ref     string `json:"ref" validate:"required,ref"`
	Body    string `json:"body" validate:"required,max=10000"`
	Private *bool  `json:"private"`
}

func (nn *NewNote) Validate(validate *validator.Validate) error { return validate.Struct(nn) }

type UpdateNote struct {
	Body    string `json:"body" validate:"required,max=10000"`
	Private *bool  `json:"private"`
}

func (un *UpdateNote) Validate(validate *validator.Validate) error { return validate.Struct(un) }

// Filter narrows list results to a book and optionally a chapter.
type Filter struct {
	Book    string `query:"book"`
	Chapter int    `query:"chapter"`
}

// Match reports whether a falls within the filter.
func (f Filter) Match(a Anchor) bool {
	if f.Book != "" && f.Book != a.Book {
		return false
	}
	if f.Chapter > 0 && f.Chapter != a.Chapter {
		return false
	}
	return true
}
