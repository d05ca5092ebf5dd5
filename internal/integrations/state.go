package integrations

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/khony/adzb/internal/store"
)

var ErrInvalidState = errors.New("invalid oauth state")

// State travels through the provider redirect and names the organization
// and provider the authorization is for.
type State struct {
	OrganizationID string `json:"organizationId"`
	Provider       string `json:"provider"`
}

func EncodeState(s State) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeState rejects anything that is not base64 JSON naming an
// organization and a known provider.
func DecodeState(encoded string) (State, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return State{}, ErrInvalidState
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return State{}, ErrInvalidState
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return State{}, ErrInvalidState
	}
	if s.OrganizationID == "" || !store.ValidProvider(s.Provider) {
		return State{}, ErrInvalidState
	}
	return s, nil
}
