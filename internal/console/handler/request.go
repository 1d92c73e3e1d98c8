package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net"
	"net/http"
	"strings"

	"github.com/xela07ax/manday-assess/internal/apperr"
	"github.com/xela07ax/manday-assess/internal/domain"
)

// maxBodyBytes ограничивает тело JSON-запроса.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("request body is empty")

// decodeJSON читает тело в dst. Пустое тело и не-JSON Content-Type считаются ошибкой клиента.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return apperr.New(apperr.KindUnsupportedMediaType, "unsupported content type "+ct)
		}
	}
	if r.Body == nil || r.Body == http.NoBody {
		return apperr.Wrap(apperr.KindMalformedRequest, errEmptyBody, "request body is not readable")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Wrap(apperr.KindMalformedRequest, err, "request body too large")
		}
		return apperr.From(err)
	}
	return nil
}

// clientInfo: X-Forwarded-For (первый адрес), затем X-Real-IP, затем адрес соединения.
func clientInfo(r *http.Request) domain.ClientInfo {
	return domain.ClientInfo{IP: clientIP(r), UserAgent: r.UserAgent()}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" && !strings.EqualFold(ip, "unknown") {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" && !strings.EqualFold(ip, "unknown") {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
