package routes

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/ajg/form"
	"github.com/go-chi/render"

	"github.com/mbolis/quick-apply/app"
	"github.com/mbolis/quick-apply/httpx"
	"github.com/mbolis/quick-apply/integration"
	"github.com/mbolis/quick-apply/log"
	"github.com/mbolis/quick-apply/metrics"
	"github.com/mbolis/quick-apply/otp"
	"github.com/mbolis/quick-apply/submission"
)

// multipart bodies may carry this much on top of the resume itself
const formOverhead = 1 << 20

type applyPage struct {
	Catalog       any
	Years         []int
	Form          submission.Form
	Errors        map[string]string
	RequireOTP    bool
	RequireResume bool
	MaxUploadMB   int64
}

func newApplyPage(app app.App) applyPage {
	years := make([]int, submission.MaxExperience+1)
	for i := range years {
		years[i] = i
	}
	return applyPage{
		Catalog:       app.Catalog,
		Years:         years,
		RequireOTP:    app.RequireOTP,
		RequireResume: app.RequireResume,
		MaxUploadMB:   app.MaxUploadSize >> 20,
	}
}

func ApplyForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, http.StatusOK, "apply.html", newApplyPage(app))
	}
}

func Roles(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, app.Catalog.Catalog)
	}
}

func Submit(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asJSON := wantsJSON(r)

		req, err := decodeSubmission(w, r, app.MaxUploadSize+formOverhead)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
				httpx.LogStatus(w, http.StatusRequestEntityTooLarge, log.DebugLevel, "submit.too_large")
				return
			}
			httpx.LogStatus(w, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		if req.Resume != nil {
			if c, ok := req.Resume.Body.(io.Closer); ok {
				defer c.Close()
			}
		}

		a, err := app.Submissions.Submit(r.Context(), req)
		if err != nil {
			submitError(w, r, app, req.Form, asJSON, err)
			return
		}

		if asJSON {
			render.Status(r, http.StatusCreated)
			render.JSON(w, r, map[string]any{
				"status": "Application Submitted",
				"id":     a.ID,
				"score":  a.Score,
				"result": a.Result,
			})
			return
		}
		renderPage(w, http.StatusCreated, "submitted.html", a)
	}
}

func submitError(w http.ResponseWriter, r *http.Request, app app.App, f submission.Form, asJSON bool, err error) {
	var verr *submission.ValidationError
	switch {
	case errors.As(err, &verr):
		if asJSON {
			httpx.LogStatusJSON(w, r, http.StatusUnprocessableEntity, "submit.invalid", "invalid application", verr.Fields)
			return
		}
		log.Debugf("submit.invalid: %s", verr)
		page := newApplyPage(app)
		page.Form = f
		page.Errors = make(map[string]string, len(verr.Fields))
		for _, fe := range verr.Fields {
			page.Errors[fe.Field] = fe.Message
		}
		renderPage(w, http.StatusUnprocessableEntity, "apply.html", page)

	case errors.Is(err, submission.ErrNotVerified):
		statusJSONOrText(w, r, asJSON, http.StatusForbidden, "submit.not_verified", "please verify your email address first")

	case errors.Is(err, submission.ErrInFlight):
		statusJSONOrText(w, r, asJSON, http.StatusConflict, "submit.in_flight", err.Error())

	default:
		httpx.LogInternalError(w, "submit", err)
	}
}

func statusJSONOrText(w http.ResponseWriter, r *http.Request, asJSON bool, status int, code, msg string) {
	if asJSON {
		httpx.LogStatusJSON(w, r, status, code, msg, nil)
		return
	}
	httpx.LogStatusMsg(w, status, log.DebugLevel, code, "%s", msg)
}

func decodeSubmission(w http.ResponseWriter, r *http.Request, maxBytes int64) (req submission.Request, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("content-type"))
	switch mediaType {
	case "application/json":
		err = render.DecodeJSON(r.Body, &req.Form)
		return

	case "multipart/form-data":
		if err = r.ParseMultipartForm(formOverhead); err != nil {
			return
		}
		if err = decodeForm(&req.Form, r.MultipartForm.Value); err != nil {
			return
		}

		file, header, ferr := r.FormFile("resume")
		switch {
		case errors.Is(ferr, http.ErrMissingFile):
		case ferr != nil:
			err = ferr
		case header.Filename == "" && header.Size == 0:
			file.Close()
		default:
			req.Resume = &submission.Resume{Name: header.Filename, Body: file}
		}
		return

	default:
		if err = r.ParseForm(); err != nil {
			return
		}
		err = decodeForm(&req.Form, r.PostForm)
		return
	}
}

func decodeForm(dst *submission.Form, values url.Values) error {
	d := form.NewDecoder(nil)
	d.IgnoreUnknownKeys(true)
	return d.DecodeValues(dst, values)
}

func wantsJSON(r *http.Request) bool {
	if render.GetAcceptedContentType(r) == render.ContentTypeJSON {
		return true
	}
	return strings.HasPrefix(r.Header.Get("content-type"), "application/json")
}

type otpRequest struct {
	Channel     string `json:"channel" form:"channel"`
	Destination string `json:"destination" form:"destination"`
	Code        string `json:"code,omitempty" form:"code"`
}

func (req *otpRequest) Bind(*http.Request) error {
	if req.Channel == "" {
		req.Channel = otp.ChannelEmail
	}
	return nil
}

func RequestOTP(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := &otpRequest{}
		if err := render.Bind(r, req); err != nil {
			httpx.LogStatusJSON(w, r, http.StatusBadRequest, "request.parse_body", "malformed request", nil)
			return
		}

		expiresAt, err := app.OTP.Request(r.Context(), req.Channel, req.Destination)
		if err != nil {
			otpError(w, r, "request", err)
			return
		}
		metrics.OTPRequests.WithLabelValues("request", "sent").Inc()

		render.JSON(w, r, map[string]any{
			"status":     "Code sent",
			"expires_at": expiresAt.UTC(),
		})
	}
}

func VerifyOTP(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := &otpRequest{}
		if err := render.Bind(r, req); err != nil {
			httpx.LogStatusJSON(w, r, http.StatusBadRequest, "request.parse_body", "malformed request", nil)
			return
		}

		if err := app.OTP.Verify(r.Context(), req.Channel, req.Destination, req.Code); err != nil {
			otpError(w, r, "verify", err)
			return
		}
		metrics.OTPRequests.WithLabelValues("verify", "verified").Inc()

		render.JSON(w, r, map[string]any{"status": "Verified"})
	}
}

func otpError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := "otp." + op
	outcome := "error"
	defer func() { metrics.OTPRequests.WithLabelValues(op, outcome).Inc() }()

	status := http.StatusInternalServerError
	var ie *integration.Error
	switch {
	case errors.Is(err, otp.ErrInvalidChannel), errors.Is(err, otp.ErrInvalidDestination):
		status, outcome = http.StatusBadRequest, "invalid"
	case errors.Is(err, otp.ErrInvalidCode):
		status, outcome = http.StatusBadRequest, "wrong_code"
	case errors.Is(err, otp.ErrNotFound):
		status, outcome = http.StatusNotFound, "not_found"
	case errors.Is(err, otp.ErrExpired):
		status, outcome = http.StatusGone, "expired"
	case errors.Is(err, otp.ErrRateLimited), errors.Is(err, otp.ErrTooManyAttempts):
		status, outcome = http.StatusTooManyRequests, "limited"
	case errors.As(err, &ie) && ie.Kind == integration.KindUnconfigured:
		status, outcome = http.StatusServiceUnavailable, "unconfigured"
	case errors.As(err, &ie):
		log.WithError(err).Warn(code + ".send")
		status, outcome = http.StatusBadGateway, "send_failed"
	default:
		httpx.LogInternalError(w, code, err)
		return
	}
	httpx.LogStatusJSON(w, r, status, code+"."+outcome, err.Error(), nil)
}
