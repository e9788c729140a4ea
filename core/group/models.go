package group

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     string    `json:"owner_id"`
	InviteCode  string    `json:"invite_code,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Member struct {
	GroupID  string    `json:"group_id"`
	UserID   string    `json:"user_id"`
	Name     string    `json:"name"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

func (m Member) IsOwner() bool { return m.Role == RoleOwner }

type Message struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Cursor points at a message; listing "after" it returns strictly newer messages.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

func (c Cursor) IsZero() bool { return c.ID == "" && c.CreatedAt.IsZero() }

// After reports whether m sorts after the cursor by (created_at, id).
func (c Cursor) After(m Message) bool {
	if m.CreatedAt.Equal(c.CreatedAt) {
		return m.ID > c.ID
	}
	return m.CreatedAt.After(c.CreatedAt)
}

var errInvalidCursor = errors.New("invalid cursor")

// Encode renders an opaque cursor string for clients.
func (c Cursor) Encode() string {
	if c.IsZero() {
		return ""
	}
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func DecodeCursor(s string) (Cursor, error) {
	if s == "" {
		return Cursor{}, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, errInvalidCursor
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return Cursor{}, errInvalidCursor
	}
	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return Cursor{}, errInvalidCursor
	}
	return Cursor{CreatedAt: t, ID: parts[1]}, nil
}

type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor"`
}

type Discussion struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	CreatedBy string    `json:"created_by"`
	Ref       string    `json:"ref"`
	Title     string    `json:"title"`
	Questions []string  `json:"questions"`
	CreatedAt time.Time `json:"created_at"`
}

type Post struct {
	ID           string    `json:"id"`
	DiscussionID string    `json:"discussion_id"`
	UserID       string    `json:"user_id,omitempty"`
	IsAssistant  bool      `json:"is_assistant"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

type Thread struct {
	Discussion
	Posts []Post `json:"posts"`
}

type NewGroup struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=2000"`
}

func (ng *NewGroup) Validate(validate *validator.Validate) error { return validate.Struct(ng) }

type Join struct {
	InviteCode string `json:"invite_code" validate:"required,alphanum,len=8"`
}

func (j *Join) Validate(validate *validator.Validate) error { return validate.Struct(j) }

type Invite struct {
	Email string `json:"email" validate:"required,email"`
}

func (i *Invite) Validate(validate *validator.Validate) error { return validate.Struct(i) }

type NewMessage struct {
	Body string `json:"body" validate:"required,max=4000"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error { return validate.Struct(nm) }

type NewDiscussion struct {
	Ref         string `json:"ref" validate:"required,ref"`
	Title       string `json:"title" validate:"max=200"`
	Translation string `json:"translation" validate:"omitempty,translation"`
}

func (nd *NewDiscussion) Validate(validate *validator.Validate) error { return validate.Struct(nd) }
