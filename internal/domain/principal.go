package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// RolePrefix отличает роли от прямых прав в общем наборе полномочий.
const RolePrefix = "ROLE_"

// AuthoritySet: неизменяемый отсортированный набор строк без повторов.
type AuthoritySet struct {
	items []string
}

func NewAuthoritySet(values ...string) AuthoritySet {
	items := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			items = append(items, v)
		}
	}
	slices.Sort(items)
	return AuthoritySet{items: slices.Compact(items)}
}

func (s AuthoritySet) Has(authority string) bool {
	_, ok := slices.BinarySearch(s.items, authority)
	return ok
}

func (s AuthoritySet) HasAny(authorities ...string) bool {
	for _, a := range authorities {
		if s.Has(a) {
			return true
		}
	}
	return false
}

func (s AuthoritySet) HasRole(code string) bool { return s.Has(RolePrefix + code) }

func (s AuthoritySet) Len() int { return len(s.items) }

// Values возвращает копию, чтобы снимок нельзя было изменить снаружи.
func (s AuthoritySet) Values() []string { return slices.Clone(s.items) }

func (s AuthoritySet) MarshalJSON() ([]byte, error) {
	if s.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.items)
}

func (s *AuthoritySet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewAuthoritySet(values...)
	return nil
}

// Principal: аутентифицированный пользователь с плоским набором полномочий.
type Principal struct {
	ID                    int64        `json:"id"`
	Username              string       `json:"username"`
	RealName              string       `json:"realName,omitempty"`
	Email                 string       `json:"email,omitempty"`
	EmployeeID            string       `json:"employeeId,omitempty"`
	Department            string       `json:"department,omitempty"`
	Position              string       `json:"position,omitempty"`
	Enabled               bool         `json:"enabled"`
	AccountNonLocked      bool         `json:"accountNonLocked"`
	CredentialsNonExpired bool         `json:"credentialsNonExpired"`
	PasswordExpiresAt     *time.Time   `json:"passwordExpiresAt,omitempty"`
	LastLoginAt           *time.Time   `json:"lastLoginAt,omitempty"`
	Roles                 []string     `json:"roles"`
	Permissions           []string     `json:"permissions"`
	Authorities           AuthoritySet `json:"authorities"`
}

func (p *Principal) HasAuthority(authority string) bool {
	return p != nil && p.Authorities.Has(authority)
}

func (p *Principal) HasAnyAuthority(authorities ...string) bool {
	return p != nil && p.Authorities.HasAny(authorities...)
}
