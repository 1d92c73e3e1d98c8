package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Signer подписывает записи аудита, чтобы подмену в БД можно было обнаружить.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// payload: username:operation:module:description:unixMillis:ip
func payload(e *AuditEvent) string {
	return strings.Join([]string{
		e.Username,
		string(e.Operation),
		e.Module,
		e.Description,
		strconv.FormatInt(e.Timestamp.UnixMilli(), 10),
		e.ClientIP,
	}, ":")
}

func (s *Signer) Sign(e *AuditEvent) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload(e)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) Verify(e *AuditEvent) bool {
	want, err := hex.DecodeString(e.Signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload(e)))
	return hmac.Equal(want, mac.Sum(nil))
}

// MaskEmail: zhangsan@cs.gov.cn → zh***@cs.gov.cn
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local := []rune(email[:at])
	keep := 2
	if len(local) <= keep {
		keep = 1
	}
	return string(local[:keep]) + "***" + email[at:]
}
