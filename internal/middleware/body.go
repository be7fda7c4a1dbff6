package middleware

import (
	"errors"
	"mime"
	"net/http"
)

// BodyLimit ограничивает размер тела запроса до maxBytes. Multipart-формы разбираются здесь,
// до CSRF и gin: все копии запроса дальше видят уже разобранную форму, а временные файлы
// удаляются после ответа.
func BodyLimit(maxBytes, maxMemory int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody || maxBytes <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			if !isMultipart(r) {
				next.ServeHTTP(w, r)
				return
			}
			if err := r.ParseMultipartForm(maxMemory); err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body is too large.")
					return
				}
				writeJSONError(w, http.StatusBadRequest, "The form could not be read.")
				return
			}
			defer func() { _ = r.MultipartForm.RemoveAll() }()
			next.ServeHTTP(w, r)
		})
	}
}

func isMultipart(r *http.Request) bool {
	if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
		return false
	}
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
