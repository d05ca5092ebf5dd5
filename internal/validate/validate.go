// Package validate checks request payloads against the entity schemas.
// Every function reports only the first violated constraint.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// FieldError names the offending field and the rule it broke.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func fail(field, rule, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Rule: rule, Message: fmt.Sprintf(format, args...)}
}

func length(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min {
		if min == 1 {
			return fail(field, "required", "%s is required", field)
		}
		return fail(field, "min", "%s must be at least %d characters", field, min)
	}
	if max > 0 && n > max {
		return fail(field, "max", "%s must be at most %d characters", field, max)
	}
	return nil
}

// IsEmail applies the simple address pattern used across all schemas.
func IsEmail(value string) bool {
	return emailPattern.MatchString(value)
}

func email(field, value string) error {
	if !IsEmail(value) {
		return fail(field, "email", "%s must be a valid email", field)
	}
	return nil
}

type KeywordInput struct {
	Keyword     string `json:"keyword"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func Keyword(in KeywordInput) (KeywordInput, error) {
	in.Keyword = strings.TrimSpace(in.Keyword)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	if err := length("keyword", in.Keyword, 1, 100); err != nil {
		return in, err
	}
	if err := length("description", in.Description, 0, 500); err != nil {
		return in, err
	}
	if err := length("category", in.Category, 0, 50); err != nil {
		return in, err
	}
	return in, nil
}

type NegotiationInput struct {
	Subject    string  `json:"subject"`
	Content    string  `json:"content"`
	Recipients string  `json:"recipients"`
	EvidenceID *string `json:"evidence_id"`
}

func Negotiation(in NegotiationInput) (NegotiationInput, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Content = strings.TrimSpace(in.Content)
	if err := length("subject", in.Subject, 1, 200); err != nil {
		return in, err
	}
	if err := length("content", in.Content, 1, 10000); err != nil {
		return in, err
	}
	if err := recipients(in.Recipients); err != nil {
		return in, err
	}
	evidenceID, err := optionalUUID("evidence_id", in.EvidenceID)
	if err != nil {
		return in, err
	}
	in.EvidenceID = evidenceID
	return in, nil
}

// NegotiationPatch is a partial negotiation update; nil fields stay untouched.
type NegotiationPatch struct {
	Subject    *string `json:"subject"`
	Content    *string `json:"content"`
	Recipients *string `json:"recipients"`
	EvidenceID *string `json:"evidence_id"`
	Status     *string `json:"status"`
}

func NegotiationUpdate(p NegotiationPatch) (NegotiationPatch, error) {
	if p.Subject != nil {
		v := strings.TrimSpace(*p.Subject)
		if err := length("subject", v, 1, 200); err != nil {
			return p, err
		}
		p.Subject = &v
	}
	if p.Content != nil {
		v := strings.TrimSpace(*p.Content)
		if err := length("content", v, 1, 10000); err != nil {
			return p, err
		}
		p.Content = &v
	}
	if p.Recipients != nil {
		if err := recipients(*p.Recipients); err != nil {
			return p, err
		}
	}
	if p.EvidenceID != nil {
		evidenceID, err := optionalUUID("evidence_id", p.EvidenceID)
		if err != nil {
			return p, err
		}
		p.EvidenceID = evidenceID
	}
	if p.Status != nil {
		if err := NegotiationStatus(*p.Status); err != nil {
			return p, err
		}
	}
	return p, nil
}

var negotiationStatuses = map[string]struct{}{
	"pending":     {},
	"in_progress": {},
	"resolved":    {},
	"unresolved":  {},
}

func NegotiationStatus(status string) error {
	if _, ok := negotiationStatuses[status]; !ok {
		return fail("status", "enum", "status must be one of pending, in_progress, resolved, unresolved")
	}
	return nil
}

// Recipients splits a comma-joined list, trims each entry and drops empties.
func Recipients(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func recipients(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fail("recipients", "required", "at least one recipient is required")
	}
	list := Recipients(raw)
	if len(list) == 0 {
		return fail("recipients", "required", "at least one recipient is required")
	}
	for _, addr := range list {
		if !IsEmail(addr) {
			return fail("recipients", "email", "%q is not a valid email", addr)
		}
	}
	return nil
}

// optionalUUID treats nil and blank as absent.
func optionalUUID(field string, value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(trimmed); err != nil {
		return nil, fail(field, "uuid", "%s must be a UUID", field)
	}
	return &trimmed, nil
}

func CreateOrganization(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := length("name", name, 2, 50); err != nil {
		return name, err
	}
	return name, nil
}

type OrganizationPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	AvatarURL   *string `json:"avatarUrl"`
}

func UpdateOrganization(p OrganizationPatch) (OrganizationPatch, error) {
	if p.Name != nil {
		v := strings.TrimSpace(*p.Name)
		if err := length("name", v, 2, 50); err != nil {
			return p, err
		}
		p.Name = &v
	}
	if p.Description != nil {
		v := strings.TrimSpace(*p.Description)
		if err := length("description", v, 0, 500); err != nil {
			return p, err
		}
		p.Description = &v
	}
	return p, nil
}

type InvitationInput struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func Invitation(in InvitationInput) (InvitationInput, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := email("email", in.Email); err != nil {
		return in, err
	}
	if in.Role != "admin" && in.Role != "member" {
		return in, fail("role", "enum", "role must be admin or member")
	}
	return in, nil
}

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

func Register(in RegisterInput) (RegisterInput, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := email("email", in.Email); err != nil {
		return in, err
	}
	if utf8.RuneCountInString(in.Password) < 8 {
		return in, fail("password", "min", "password must be at least 8 characters")
	}
	if err := length("fullName", in.FullName, 2, 0); err != nil {
		return in, err
	}
	return in, nil
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(in LoginInput) (LoginInput, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := email("email", in.Email); err != nil {
		return in, err
	}
	if in.Password == "" {
		return in, fail("password", "required", "password is required")
	}
	return in, nil
}

// ProfilePatch is a partial profile update. Email is never part of it.
type ProfilePatch struct {
	FullName  *string `json:"fullName"`
	AvatarURL *string `json:"avatarUrl"`
}

func Profile(p ProfilePatch) (ProfilePatch, error) {
	if p.FullName != nil {
		v := strings.TrimSpace(*p.FullName)
		if err := length("fullName", v, 2, 100); err != nil {
			return p, err
		}
		p.FullName = &v
	}
	if p.AvatarURL != nil {
		v := strings.TrimSpace(*p.AvatarURL)
		p.AvatarURL = &v
	}
	return p, nil
}
