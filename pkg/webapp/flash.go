package webapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const flashCookie = "flash"

// setFlash queues a one-shot message for the next page render. The cookie
// value is HMAC-signed with the session secret so it cannot be forged.
func (s *Server) setFlash(w http.ResponseWriter, messages ...string) {
	payload := base64.URLEncoding.EncodeToString([]byte(strings.Join(messages, "\n")))
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    payload + "." + s.signFlash(payload),
		Path:     "/",
		HttpOnly: true,
	})
}

// popFlash returns queued messages and clears the cookie. Messages with a
// bad signature are dropped.
func (s *Server) popFlash(w http.ResponseWriter, r *http.Request) []string {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	payload, signature, ok := strings.Cut(cookie.Value, ".")
	if !ok || !hmac.Equal([]byte(signature), []byte(s.signFlash(payload))) {
		return nil
	}
	decoded, err := base64.URLEncoding.DecodeString(payload)
	if err != nil || len(decoded) == 0 {
		return nil
	}
	return strings.Split(string(decoded), "\n")
}

func (s *Server) signFlash(payload string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.SessionSecret))
	mac.Write([]byte(payload))
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}
