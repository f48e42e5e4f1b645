package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mbolis/quick-apply/log"
)

// LogInternalError logs err under code and answers 500 with the default text.
func LogInternalError(w http.ResponseWriter, code string, err error) {
	log.Errorf("%s: %s", code, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

// LogStatus logs code at level and answers status with the default text.
func LogStatus(w http.ResponseWriter, status int, level log.Level, code string) {
	log.Log(level, code)
	http.Error(w, http.StatusText(status), status)
}

// LogStatusMsg is LogStatus with a formatted message as the body.
func LogStatusMsg(w http.ResponseWriter, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	http.Error(w, errMsg, status)
}

// LogStatusJSON logs code at debug level and answers status with
// {"error": msg, "details": details}; details is omitted when nil.
func LogStatusJSON(w http.ResponseWriter, r *http.Request, status int, code string, msg string, details any) {
	log.Debugf("%s: %s", code, msg)
	body := map[string]any{"error": msg}
	if details != nil {
		body["details"] = details
	}
	render.Status(r, status)
	render.JSON(w, r, body)
}
