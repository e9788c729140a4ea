package bible

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrUnknownBook      = errors.New("unknown book")
	ErrChapterRange     = errors.New("chapter out of range")
	ErrVerseRange       = errors.New("invalid verse range")
)

// Reference points at a chapter, a verse or a verse range in a single chapter.
// VerseStart == 0 means the whole chapter.
type Reference struct {
	Book       string `json:"book"`
	Chapter    int    `json:"chapter"`
	VerseStart int    `json:"verse_start,omitempty"`
	VerseEnd   int    `json:"verse_end,omitempty"`
}

// ParseReference parses "JHN.3", "JHN.3.16" or "JHN.3.16-18".
func ParseReference(s string) (Reference, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 2 || len(parts) > 3 {
		return Reference{}, ErrInvalidReference
	}

	ref := Reference{Book: strings.ToUpper(parts[0])}
	var err error
	if ref.Chapter, err = strconv.Atoi(parts[1]); err != nil {
		return Reference{}, ErrInvalidReference
	}
	if len(parts) == 3 {
		verses := strings.SplitN(parts[2], "-", 2)
		if ref.VerseStart, err = strconv.Atoi(verses[0]); err != nil {
			return Reference{}, ErrInvalidReference
		}
		ref.VerseEnd = ref.VerseStart
		if len(verses) == 2 {
			if ref.VerseEnd, err = strconv.Atoi(verses[1]); err != nil {
				return Reference{}, ErrInvalidReference
			}
		}
		if ref.VerseStart < 1 {
			return Reference{}, ErrVerseRange
		}
	}
	if err := ref.Validate(); err != nil {
		return Reference{}, err
	}
	return ref, nil
}

// Validate checks the book exists, the chapter is in range and the verse range is ordered.
func (r Reference) Validate() error {
	book, ok := LookupBook(r.Book)
	if !ok {
		return ErrUnknownBook
	}
	if r.Chapter < 1 || r.Chapter > book.Chapters {
		return ErrChapterRange
	}
	if r.VerseStart < 0 || (r.VerseStart == 0 && r.VerseEnd != 0) || r.VerseEnd < r.VerseStart {
		return ErrVerseRange
	}
	return nil
}

func (r Reference) IsChapter() bool {
	return r.VerseStart == 0
}

// Contains reports whether verse v of r's chapter is covered by r.
func (r Reference) Contains(v int) bool {
	return r.IsChapter() || (v >= r.VerseStart && v <= r.VerseEnd)
}

// String renders the canonical form accepted by ParseReference.
func (r Reference) String() string {
	s := fmt.Sprintf("%s.%d", r.Book, r.Chapter)
	if r.VerseStart > 0 {
		s += "." + strconv.Itoa(r.VerseStart)
		if r.VerseEnd > r.VerseStart {
			s += "-" + strconv.Itoa(r.VerseEnd)
		}
	}
	return s
}

// Human renders the reference for display, e.g. "John 3:16-18".
func (r Reference) Human() string {
	name := r.Book
	if b, ok := LookupBook(r.Book); ok {
		name = b.Name
	}
	s := fmt.Sprintf("%s %d", name, r.Chapter)
	if r.VerseStart > 0 {
		s += ":" + strconv.Itoa(r.VerseStart)
		if r.VerseEnd > r.VerseStart {
			s += "-" + strconv.Itoa(r.VerseEnd)
		}
	}
	return s
}
