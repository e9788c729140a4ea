package plan

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/selah/core"
)

type Plan struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AuthorID    string    `json:"author_id"`
	Published   bool      `json:"published"`
	Days        []Day     `json:"days"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Day is one day of a plan: Number starts at 1.
type Day struct {
	Number int      `json:"day"`
	Refs   []string `json:"refs"`
}

func (p Plan) Length() int { return len(p.Days) }

type Enrollment struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	PlanID        string    `json:"plan_id"`
	StartDate     string    `json:"start_date"` // YYYY-MM-DD, user-local
	CompletedDays []int     `json:"completed_days"`
	CompletedAt   time.Time `json:"completed_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func (e Enrollment) IsCompleted(day int) bool {
	for _, d := range e.CompletedDays {
		if d == day {
			return true
		}
	}
	return false
}

func (e *Enrollment) complete(day int) {
	e.CompletedDays = append(e.CompletedDays, day)
	sort.Ints(e.CompletedDays)
}

// Today returns the plan day the enrollment is on at `now` in timezone tz:
// 1 on the start date, 0 before it.
func Today(e Enrollment, now time.Time, tz string) int {
	start, err := time.Parse(core.DateLayout, e.StartDate)
	if err != nil {
		return 0
	}
	local, _ := time.Parse(core.DateLayout, core.LocalDate(now, tz))
	if local.Before(start) {
		return 0
	}
	return int(local.Sub(start).Hours()/24) + 1
}

// Progress is an enrollment along with its plan summary, as listed under /me/plans.
type Progress struct {
	Enrollment
	Title     string  `json:"title"`
	TotalDays int     `json:"total_days"`
	Today     int     `json:"today"`
	Percent   float64 `json:"percent"`
}

type NewPlan struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=5000"`
	Days        []NewDay `json:"days" validate:"required,min=1,max=366,dive"`
	Published   bool     `json:"published"`
}

type NewDay struct {
	Refs []string `json:"refs" validate:"required,min=1,dive,ref"`
}

func (np *NewPlan) Validate(validate *validator.Validate) error { return validate.Struct(np) }

type Enroll struct {
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

func (en *Enroll) Validate(validate *validator.Validate) error { return validate.Struct(en) }
