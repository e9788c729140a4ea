package bible

import (
	"context"
	"strconv"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
)

var (
	ErrNotFound            = core.NewNotFoundError("passage")
	ErrUnknownTranslation  = errors.New("unknown translation")
	errProviderUnavailable = errors.New("bible text provider unavailable")

	// validation tags & texts
	bookTag         = "book"
	bookText        = "unknown book"
	referenceTag    = "ref"
	referenceText   = "invalid reference"
	translationTag  = "translation"
	translationText = "unknown translation"
)

type (
	Translation struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Language string `json:"language"`
	}

	Verse struct {
		Book    string `json:"book"`
		Chapter int    `json:"chapter"`
		Verse   int    `json:"verse"`
		Text    string `json:"text"`
	}

	Passage struct {
		Reference   string  `json:"reference"` // canonical, e.g. JHN.3.16-18
		Display     string  `json:"display"`   // e.g. John 3:16-18
		Translation string  `json:"translation"`
		Verses      []Verse `json:"verses"`
		Text        string  `json:"text"`
		AudioURL    string  `json:"audio_url,omitempty"`
	}

	// Provider fetches passages from a Bible text API.
	Provider interface {
		Passage(ctx context.Context, translation string, ref Reference) (Passage, error)
	}

	Service interface {
		Translations() []Translation
		Books() []Book
		Book(id string) (Book, error)
		Chapter(ctx context.Context, translation, book string, chapter int) (Passage, error)
		Passage(ctx context.Context, translation, ref string) (Passage, error)
		AudioURL(translation, book string, chapter int) (string, error)
		VerseOfTheDay(ctx context.Context, translation string, day time.Time) (Passage, error)
	}

	service struct {
		provider      Provider
		defaultTrans  string
		audioTemplate string
	}
)

var translations = []Translation{
	{ID: "web", Name: "World English Bible", Language: "en"},
	{ID: "kjv", Name: "King James Version", Language: "en"},
	{ID: "asv", Name: "American Standard Version", Language: "en"},
	{ID: "bbe", Name: "Bible in Basic English", Language: "en"},
	{ID: "darby", Name: "Darby Bible", Language: "en"},
	{ID: "ylt", Name: "Young's Literal Translation", Language: "en"},
	{ID: "webbe", Name: "World English Bible, British Edition", Language: "en"},
	{ID: "oeb-us", Name: "Open English Bible, US Edition", Language: "en"},
	{ID: "clementine", Name: "Clementine Latin Vulgate", Language: "la"},
	{ID: "almeida", Name: "João Ferreira de Almeida", Language: "pt"},
	{ID: "rccv", Name: "Romanian Corrected Cornilescu Version", Language: "ro"},
}

var _ Service = (*service)(nil)

func NewService(conf *core.Config, provider Provider) Service {
	return &service{
		provider:      provider,
		defaultTrans:  conf.Bible.DefaultTranslation,
		audioTemplate: conf.Bible.AudioURLTemplate,
	}
}

// InitValidators registers the `book`, `ref` and `translation` validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(bookTag, func(fl validator.FieldLevel) bool {
		_, ok := LookupBook(fl.Field().String())
		return ok
	})
	core.RegisterCustomTranslation(validate, translator, bookTag, bookText)

	_ = validate.RegisterValidation(referenceTag, func(fl validator.FieldLevel) bool {
		_, err := ParseReference(fl.Field().String())
		return err == nil
	})
	core.RegisterCustomTranslation(validate, translator, referenceTag, referenceText)

	_ = validate.RegisterValidation(translationTag, func(fl validator.FieldLevel) bool {
		return IsTranslation(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, translationTag, translationText)
}

func IsTranslation(id string) bool {
	id = strings.ToLower(id)
	for _, t := range translations {
		if t.ID == id {
			return true
		}
	}
	return false
}

func (svc *service) Translations() []Translation {
	ts := make([]Translation, len(translations))
	copy(ts, translations)
	return ts
}

func (svc *service) Books() []Book {
	return Books()
}

func (svc *service) Book(id string) (Book, error) {
	b, ok := LookupBook(id)
	if !ok {
		return Book{}, core.NewValidationError(ErrUnknownBook, core.FieldError{Field: "book", Error: ErrUnknownBook.Error()})
	}
	return b, nil
}

func (svc *service) translation(t string) (string, error) {
	t = core.CleanString(t, true /* lower */)
	if t == "" {
		return svc.defaultTrans, nil
	}
	if !IsTranslation(t) {
		return "", core.NewValidationError(ErrUnknownTranslation, core.FieldError{Field: "translation", Error: ErrUnknownTranslation.Error()})
	}
	return t, nil
}

func (svc *service) Chapter(ctx context.Context, translation, book string, chapter int) (Passage, error) {
	return svc.fetch(ctx, translation, Reference{Book: strings.ToUpper(book), Chapter: chapter})
}

func (svc *service) Passage(ctx context.Context, translation, ref string) (Passage, error) {
	r, err := ParseReference(ref)
	if err != nil {
		return Passage{}, core.NewValidationError(err, core.FieldError{Field: "ref", Error: err.Error()})
	}
	return svc.fetch(ctx, translation, r)
}

func (svc *service) fetch(ctx context.Context, translation string, ref Reference) (Passage, error) {
	if err := ref.Validate(); err != nil {
		return Passage{}, core.NewValidationError(err, core.FieldError{Field: "ref", Error: err.Error()})
	}
	trans, err := svc.translation(translation)
	if err != nil {
		return Passage{}, err
	}
	if svc.provider == nil {
		return Passage{}, errProviderUnavailable
	}

	p, err := svc.provider.Passage(ctx, trans, ref)
	if err != nil {
		return Passage{}, errors.Wrapf(err, "fetching %s (%s)", ref, trans)
	}
	p.Reference = ref.String()
	p.Display = ref.Human()
	p.Translation = trans
	if ref.IsChapter() {
		p.AudioURL, _ = svc.AudioURL(trans, ref.Book, ref.Chapter)
	}
	return p, nil
}

// AudioURL renders the configured template, e.g. https://cdn/{translation}/{book}/{chapter}.mp3.
func (svc *service) AudioURL(translation, book string, chapter int) (string, error) {
	ref := Reference{Book: strings.ToUpper(book), Chapter: chapter}
	if err := ref.Validate(); err != nil {
		return "", core.NewValidationError(err, core.FieldError{Field: "ref", Error: err.Error()})
	}
	trans, err := svc.translation(translation)
	if err != nil {
		return "", err
	}
	r := strings.NewReplacer(
		"{translation}", trans,
		"{book}", ref.Book,
		"{chapter}", strconv.Itoa(ref.Chapter),
	)
	return r.Replace(svc.audioTemplate), nil
}

func (svc *service) VerseOfTheDay(ctx context.Context, translation string, day time.Time) (Passage, error) {
	return svc.fetch(ctx, translation, VerseOfTheDayRef(day))
}
