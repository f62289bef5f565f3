package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Credential is a bearer token held in one of the two session slots
type Credential struct {
	Kind       TokenKind
	Value      string
	Persistent bool
	// ExpiresAt is only known for persistent credentials, zero means no known expiry
	ExpiresAt time.Time
}

// String immplements the Stringer interface for printing the credential in logs
func (c Credential) String() string {
	return fmt.Sprintf(
		"%s<Value: redacted, Persistent: %v, ExpiresAt: %s>",
		c.Kind,
		c.Persistent,
		c.ExpiresAt,
	)
}

func (c Credential) Expired() bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(c.ExpiresAt)
}

// Session is the pair of credentials of the logged in operator. Either one can be missing.
type Session struct {
	AccessToken  *Credential
	RefreshToken *Credential
}

func (s Session) IsAuthenticated() bool {
	return s.RefreshToken != nil && s.RefreshToken.Value != ""
}

func (s Session) String() string {
	return fmt.Sprintf("Session<AccessToken: %v, RefreshToken: %v>", s.AccessToken, s.RefreshToken)
}

// TokenPair is the body returned by the login and refresh endpoints. Integrations disagree on
// the field spelling so both snake and camel case are accepted, at the top level or under "data".
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type tokenPairFields struct {
	AccessTokenSnake  string          `json:"access_token"`
	AccessTokenCamel  string          `json:"accessToken"`
	RefreshTokenSnake string          `json:"refresh_token"`
	RefreshTokenCamel string          `json:"refreshToken"`
	Data              json.RawMessage `json:"data"`
}

func (p *TokenPair) UnmarshalJSON(data []byte) error {
	var fields tokenPairFields
	err := json.Unmarshal(data, &fields)
	if err != nil {
		return err
	}
	p.AccessToken = firstNonEmpty(fields.AccessTokenSnake, fields.AccessTokenCamel)
	p.RefreshToken = firstNonEmpty(fields.RefreshTokenSnake, fields.RefreshTokenCamel)
	if p.AccessToken == "" && len(fields.Data) > 0 && string(fields.Data) != "null" {
		var nested TokenPair
		err = json.Unmarshal(fields.Data, &nested)
		if err != nil {
			// a data field that is not an object simply does not carry tokens
			return nil
		}
		*p = nested
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
