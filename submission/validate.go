package submission

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/mbolis/quick-apply/catalog"
	"github.com/mbolis/quick-apply/model"
	"github.com/mbolis/quick-apply/otp"
)

const (
	maxFieldLength  = 200
	maxAnswerLength = 5000
	MaxExperience   = 30
)

// Form is the applicant input as posted by the apply page.
type Form struct {
	Name          string `form:"name" json:"name"`
	Phone         string `form:"phone" json:"phone"`
	Email         string `form:"email" json:"email"`
	Experience    string `form:"experience" json:"experience"`
	Qualification string `form:"qualification" json:"qualification"`
	JobRole       string `form:"job_role" json:"job_role"`
	Country       string `form:"country" json:"country"`
	State         string `form:"state" json:"state"`
	District      string `form:"district" json:"district"`
	Area          string `form:"area" json:"area"`
	Q1            string `form:"q1" json:"q1"`
	Q2            string `form:"q2" json:"q2"`
	Q3            string `form:"q3" json:"q3"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "invalid application: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, msg string, args ...any) {
	e.Fields = append(e.Fields, FieldError{field, fmt.Sprintf(msg, args...)})
}

// Validate checks f against c and builds the application it describes.
// Score and result are left for the scorer.
func Validate(f Form, c *catalog.Catalog) (model.Application, model.Role, error) {
	verr := &ValidationError{}
	a := model.Application{
		Name:          strings.TrimSpace(f.Name),
		Phone:         strings.TrimSpace(f.Phone),
		Email:         strings.TrimSpace(f.Email),
		Qualification: strings.TrimSpace(f.Qualification),
		JobRole:       strings.TrimSpace(f.JobRole),
		Country:       strings.TrimSpace(f.Country),
		State:         strings.TrimSpace(f.State),
		District:      strings.TrimSpace(f.District),
		Area:          strings.TrimSpace(f.Area),
	}

	for _, req := range []struct{ field, value string }{
		{"name", a.Name},
		{"phone", a.Phone},
		{"email", a.Email},
		{"experience", strings.TrimSpace(f.Experience)},
		{"qualification", a.Qualification},
		{"job_role", a.JobRole},
	} {
		if req.value == "" {
			verr.add(req.field, "is required")
		}
	}

	for _, opt := range []struct{ field, value string }{
		{"name", a.Name}, {"country", a.Country}, {"state", a.State},
		{"district", a.District}, {"area", a.Area},
	} {
		if utf8.RuneCountInString(opt.value) > maxFieldLength {
			verr.add(opt.field, "must be at most %d characters", maxFieldLength)
		}
	}

	if a.Email != "" {
		addr, err := mail.ParseAddress(a.Email)
		if err != nil || addr.Address != a.Email {
			verr.add("email", "is not a valid email address")
		}
	}

	if a.Phone != "" {
		if _, err := otp.Normalize(otp.ChannelSMS, a.Phone); err != nil {
			verr.add("phone", "must contain 7 to 15 digits")
		}
	}

	if exp := strings.TrimSpace(f.Experience); exp != "" {
		years, err := parseExperience(exp)
		if err != nil || years < 0 || years > MaxExperience {
			verr.add("experience", "must be between 0 and %d years", MaxExperience)
		}
		a.Experience = years
	}

	if a.Qualification != "" && !c.HasQualification(a.Qualification) {
		verr.add("qualification", "is not a known qualification")
	}

	role, ok := c.Lookup(a.JobRole)
	if a.JobRole != "" && !ok {
		verr.add("job_role", "is not an open role")
	}
	a.JobCategory = role.Category

	a.Answers = []string{}
	for i, ans := range []string{f.Q1, f.Q2, f.Q3}[:min(len(role.Questions), 3)] {
		ans = strings.TrimSpace(ans)
		if utf8.RuneCountInString(ans) > maxAnswerLength {
			verr.add(fmt.Sprintf("q%d", i+1), "must be at most %d characters", maxAnswerLength)
		}
		a.Answers = append(a.Answers, ans)
	}

	if len(verr.Fields) > 0 {
		return a, role, verr
	}
	return a, role, nil
}

// parseExperience accepts "3" as well as the "3 Years" labels of the form.
func parseExperience(s string) (int, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, fmt.Errorf("bad experience %q", s)
	}
	if len(fields) == 2 && !strings.EqualFold(strings.TrimSuffix(fields[1], "s"), "year") {
		return 0, fmt.Errorf("bad experience %q", s)
	}
	return strconv.Atoi(fields[0])
}
