package models

import "fmt"

// TokenKind identifies one of the two credential slots of a session.
type TokenKind string

const AccessToken TokenKind = "access_token"
const RefreshToken TokenKind = "refresh_token"

// TokenKinds lists the slots in the order they are cleared.
var TokenKinds = []TokenKind{AccessToken, RefreshToken}

func (k TokenKind) Validate() error {
	switch k {
	case AccessToken, RefreshToken:
		return nil
	default:
		return fmt.Errorf("unknown token kind: %s", string(k))
	}
}

func (k TokenKind) MarshalText() (data []byte, err error) {
	return []byte(k), nil
}

func (k TokenKind) MarshalBinary() (data []byte, err error) {
	return []byte(k), nil
}

func (k *TokenKind) UnmarshalText(data []byte) error {
	*k = TokenKind(string(data))
	return k.Validate()
}

func (k *TokenKind) UnmarshalBinary(data []byte) error {
	return k.UnmarshalText(data)
}
