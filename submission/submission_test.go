package submission

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbolis/quick-apply/catalog"
	"github.com/mbolis/quick-apply/model"
	"github.com/mbolis/quick-apply/notify"
	"github.com/mbolis/quick-apply/otp"
	"github.com/mbolis/quick-apply/ratelimit"
	"github.com/mbolis/quick-apply/scoring"
	"github.com/mbolis/quick-apply/store"
	"github.com/mbolis/quick-apply/upload"
)

type sentMail struct {
	mu   sync.Mutex
	to   []string
	body []string
	err  error
}

func (m *sentMail) SendEmail(_ context.Context, to, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	m.body = append(m.body, body)
	return m.err
}

type fixture struct {
	svc   *Service
	store store.Store
	mail  *sentMail
}

func newFixture(t *testing.T, scorer scoring.Scorer, opts Options) *fixture {
	return newFixtureWithStore(t, scorer, store.NewMemory(), opts)
}

func newFixtureWithStore(t *testing.T, scorer scoring.Scorer, st store.Store, opts Options) *fixture {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	uploads, err := upload.New(t.TempDir(), 1<<20)
	require.NoError(t, err)

	f := &fixture{store: st, mail: &sentMail{}}
	f.svc = NewService(c, scorer, f.store, uploads, f.mail, opts)
	t.Cleanup(f.svc.Close)
	return f
}

func ashaForm(answers ...string) Form {
	f := Form{
		Name:          "Asha",
		Phone:         "+91 98765 43210",
		Email:         "asha@example.com",
		Experience:    "3 Years",
		Qualification: "B.Tech",
		JobRole:       "Python Developer",
		Country:       "India",
		State:         "Karnataka",
	}
	for i, a := range answers {
		switch i {
		case 0:
			f.Q1 = a
		case 1:
			f.Q2 = a
		case 2:
			f.Q3 = a
		}
	}
	return f
}

func TestSubmit_StoresOneRecord(t *testing.T) {
	f := newFixture(t, scoring.Heuristic{}, Options{})
	ctx := context.Background()

	a, err := f.svc.Submit(ctx, Request{Form: ashaForm("short", "answers", "here")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.ID)

	apps, err := f.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)

	got := apps[0]
	assert.Equal(t, "Asha", got.Name)
	assert.Equal(t, "+91 98765 43210", got.Phone)
	assert.Equal(t, "asha@example.com", got.Email)
	assert.Equal(t, 3, got.Experience)
	assert.Equal(t, "B.Tech", got.Qualification)
	assert.Equal(t, "Python Developer", got.JobRole)
	assert.Equal(t, "IT", got.JobCategory)
	assert.Equal(t, "Karnataka", got.State)
	assert.Equal(t, []string{"short", "answers", "here"}, got.Answers)
	assert.Equal(t, model.ScorerHeuristic, got.Scorer)

	assert.Equal(t, []string{"asha@example.com"}, f.mail.to)
	assert.Contains(t, f.mail.body[0], "Result: Not Qualified")
}

func TestSubmit_AshaExample(t *testing.T) {
	f := newFixture(t, scoring.Heuristic{}, Options{})
	ctx := context.Background()

	// 3 x 50 runes = 150, not above the role threshold
	short := strings.Repeat("x", 50)
	a, err := f.svc.Submit(ctx, Request{Form: ashaForm(short, short, short)})
	require.NoError(t, err)
	assert.Equal(t, model.ResultNotQualified, a.Result)

	long := strings.Repeat("y", 51)
	a, err = f.svc.Submit(ctx, Request{Form: ashaForm(short, short, long)})
	require.NoError(t, err)
	assert.Equal(t, model.ResultQualified, a.Result)

	apps, _ := f.store.List(ctx)
	assert.Len(t, apps, 2)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	f := newFixture(t, scoring.Heuristic{}, Options{})

	tests := []struct {
		name   string
		mutate func(*Form)
		fields []string
	}{
		{"missing", func(f *Form) { *f = Form{} }, []string{"name", "phone", "email", "experience", "qualification", "job_role"}},
		{"email", func(f *Form) { f.Email = "asha at example" }, []string{"email"}},
		{"phone short", func(f *Form) { f.Phone = "12345" }, []string{"phone"}},
		{"phone letters", func(f *Form) { f.Phone = "98765abc43" }, []string{"phone"}},
		{"experience", func(f *Form) { f.Experience = "31" }, []string{"experience"}},
		{"experience junk", func(f *Form) { f.Experience = "lots" }, []string{"experience"}},
		{"role", func(f *Form) { f.JobRole = "Astronaut" }, []string{"job_role"}},
		{"qualification", func(f *Form) { f.Qualification = "PhD" }, []string{"qualification"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := ashaForm("a")
			tt.mutate(&form)

			_, err := f.svc.Submit(context.Background(), Request{Form: form})
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)

			var fields []string
			for _, fe := range verr.Fields {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}

	apps, _ := f.store.List(context.Background())
	assert.Empty(t, apps)
}

func TestSubmit_RequireResume(t *testing.T) {
	f := newFixture(t, scoring.Heuristic{}, Options{RequireResume: true})

	_, err := f.svc.Submit(context.Background(), Request{Form: ashaForm("a")})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "resume", verr.Fields[0].Field)
}

func TestSubmit_ResumeFeedsScorer(t *testing.T) {
	f := newFixture(t, scoring.Heuristic{}, Options{})
	ctx := context.Background()

	withResume, err := f.svc.Submit(ctx, Request{
		Form:   ashaForm("a"),
		Resume: &Resume{Name: "cv.txt", Body: strings.NewReader("Python and Django developer, strong SQL")},
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(withResume.Resume, "_cv.txt"))

	form := ashaForm("a")
	form.Email = "other@example.com"
	without, err := f.svc.Submit(ctx, Request{Form: form})
	require.NoError(t, err)

	assert.Greater(t, withResume.Score, without.Score)
}

func TestSubmit_BadResume(t *testing.T) {
	f := newFixture(t, scoring.Heuristic{}, Options{})

	_, err := f.svc.Submit(context.Background(), Request{
		Form:   ashaForm("a"),
		Resume: &Resume{Name: "cv.exe", Body: strings.NewReader("MZ")},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "resume", verr.Fields[0].Field)
}

type blockingScorer struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingScorer) Score(ctx context.Context, in scoring.Input) (scoring.Score, error) {
	b.entered <- struct{}{}
	<-b.release
	return scoring.Heuristic{}.Score(ctx, in)
}

func TestSubmit_InFlightDuplicate(t *testing.T) {
	scorer := &blockingScorer{entered: make(chan struct{}, 1), release: make(chan struct{})}
	f := newFixture(t, scorer, Options{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Submit(ctx, Request{Form: ashaForm("a")})
		done <- err
	}()
	<-scorer.entered

	_, err := f.svc.Submit(ctx, Request{Form: ashaForm("a")})
	assert.ErrorIs(t, err, ErrInFlight)

	close(scorer.release)
	require.NoError(t, <-done)

	// released once the first one is stored
	_, err = f.svc.Submit(ctx, Request{Form: ashaForm("a")})
	assert.NoError(t, err)
}

func TestSubmit_ConcurrentDistinctToCSV(t *testing.T) {
	csv, err := store.OpenCSV(filepath.Join(t.TempDir(), "applications.csv"))
	require.NoError(t, err)
	f := newFixtureWithStore(t, scoring.Heuristic{}, csv, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, email := range []string{"a@example.com", "b@example.com"} {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			form := ashaForm("a")
			form.Email = email
			_, err := f.svc.Submit(ctx, Request{Form: form})
			assert.NoError(t, err)
		}(email)
	}
	wg.Wait()

	apps, _ := f.store.List(ctx)
	assert.Len(t, apps, 2)
}

type verifier struct{ ok bool }

func (v verifier) Verified(context.Context, string, string) (bool, error) { return v.ok, nil }
func (v verifier) Consume(context.Context, string, string) (bool, error)  { return v.ok, nil }

type failingStore struct {
	store.Store
	fail bool
}

func (s *failingStore) Append(ctx context.Context, a *model.Application) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Store.Append(ctx, a)
}

func newOTP() (*otp.Service, *otp.MemoryStore) {
	codes := otp.NewMemoryStore()
	svc := otp.NewService(codes, notify.Unconfigured("email"), notify.Unconfigured("sms"),
		ratelimit.NewMemory(10, time.Minute), otp.Options{TTL: time.Minute, VerifiedTTL: time.Hour})
	return svc, codes
}

func TestSubmit_StoreFailureKeepsVerification(t *testing.T) {
	verify, codes := newOTP()
	st := &failingStore{Store: store.NewMemory(), fail: true}
	f := newFixtureWithStore(t, scoring.Heuristic{}, st, Options{Verifier: verify})
	ctx := context.Background()
	require.NoError(t, codes.MarkVerified(ctx, "asha@example.com", time.Hour))

	_, err := f.svc.Submit(ctx, Request{Form: ashaForm("a")})
	require.Error(t, err)
	ok, err := verify.Verified(ctx, "asha@example.com", "")
	require.NoError(t, err)
	assert.True(t, ok, "marker spent by a failed submission")

	st.fail = false
	_, err = f.svc.Submit(ctx, Request{Form: ashaForm("a")})
	require.NoError(t, err)
	ok, err = verify.Verified(ctx, "asha@example.com", "")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.Submit(ctx, Request{Form: ashaForm("a")})
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestSubmit_PhoneMarkerMatchesFormattedPhone(t *testing.T) {
	verify, codes := newOTP()
	f := newFixture(t, scoring.Heuristic{}, Options{Verifier: verify})
	ctx := context.Background()

	dest, err := otp.Normalize(otp.ChannelSMS, "999-999 9999")
	require.NoError(t, err)
	require.NoError(t, codes.MarkVerified(ctx, dest, time.Hour))

	form := ashaForm("a")
	form.Phone = "(999) 999-9999"
	a, err := f.svc.Submit(ctx, Request{Form: form})
	require.NoError(t, err)
	assert.Equal(t, "(999) 999-9999", a.Phone)

	ok, err := verify.Verified(ctx, "", "(999) 999-9999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidate_TrimsButKeepsInnerText(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)

	form := ashaForm("", "  two\n  lines  ", "\"quoted\" Answer")
	form.Name = "  Asha  Rao "
	a, _, err := Validate(form, c)
	require.NoError(t, err)

	assert.Equal(t, "Asha  Rao", a.Name)
	assert.Equal(t, []string{"", "two\n  lines", "\"quoted\" Answer"}, a.Answers)
}

func TestSubmit_RequiresVerification(t *testing.T) {
	f := newFixture(t, scoring.Heuristic{}, Options{Verifier: verifier{false}})
	_, err := f.svc.Submit(context.Background(), Request{Form: ashaForm("a")})
	assert.ErrorIs(t, err, ErrNotVerified)

	apps, _ := f.store.List(context.Background())
	assert.Empty(t, apps)

	f = newFixture(t, scoring.Heuristic{}, Options{Verifier: verifier{true}})
	_, err = f.svc.Submit(context.Background(), Request{Form: ashaForm("a")})
	assert.NoError(t, err)
}

func TestSubmit_OptionalIntegrationsNeverFail(t *testing.T) {
	f := newFixture(t, scoring.NewLLM(nil, scoring.LLMOptions{Fallback: 50}), Options{})
	f.svc.email = notify.Unconfigured("email")

	a, err := f.svc.Submit(context.Background(), Request{Form: ashaForm("a")})
	require.NoError(t, err)
	assert.Equal(t, 50, a.Score)
	assert.Equal(t, model.ScorerFallback, a.Scorer)

	f.svc.email = &sentMail{err: errors.New("smtp down")}
	form := ashaForm("a")
	form.Email = "second@example.com"
	_, err = f.svc.Submit(context.Background(), Request{Form: form})
	assert.NoError(t, err)
}

func TestGuard(t *testing.T) {
	g := NewGuard()
	defer g.Close()

	assert.True(t, g.Acquire("k"))
	assert.False(t, g.Acquire("k"))
	assert.True(t, g.Acquire("other"))
	g.Release("k")
	assert.True(t, g.Acquire("k"))
}

func TestGuard_ClosedNeverBlocks(t *testing.T) {
	g := NewGuard()
	require.True(t, g.Acquire("k"))
	g.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.Release("k")
		assert.False(t, g.Acquire("k"))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("guard blocked after Close")
	}
}

func TestParseExperience(t *testing.T) {
	for in, want := range map[string]int{"0": 0, "3 Years": 3, "1 Year": 1, " 30 years ": 30} {
		got, err := parseExperience(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"three", "3 months", "3 4 5"} {
		_, err := parseExperience(in)
		assert.Error(t, err, in)
	}
}
