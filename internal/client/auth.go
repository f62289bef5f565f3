package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/golang-jwt/jwt/v4"
	"github.com/nwl-centralize/backoffice/internal/apperrors"
	"github.com/nwl-centralize/backoffice/internal/models"
	"github.com/nwl-centralize/backoffice/internal/transport"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges the operator credentials for a token pair and stores it. With rememberMe the
// tokens go to the durable medium, otherwise they only live as long as this process.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (models.Session, error) {
	if email == "" || password == "" {
		return models.Session{}, apperrors.ErrMissingCredentials
	}
	res, err := c.do(ctx, http.MethodPost, transport.LoginPath, loginRequest{Email: email, Password: password})
	if err != nil {
		return models.Session{}, err
	}
	var pair models.TokenPair
	err = json.Unmarshal(res, &pair)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %w", apperrors.ErrInvalidTokenResponse, err)
	}
	if pair.AccessToken == "" {
		return models.Session{}, apperrors.ErrInvalidTokenResponse
	}
	if c.requiredRole != "" {
		err = checkRole(pair.AccessToken, c.requiredRole)
		if err != nil {
			c.notifier.Notify(ctx, apperrors.ErrRoleNotAllowed.Error())
			return models.Session{}, err
		}
	}
	if pair.RefreshToken != "" {
		err = c.store.Set(ctx, models.RefreshToken, pair.RefreshToken, rememberMe)
	} else {
		// a refresh token left by an earlier session must not be paired with the new access token
		err = c.store.Clear(ctx, models.RefreshToken)
	}
	if err != nil {
		return models.Session{}, err
	}
	err = c.store.Set(ctx, models.AccessToken, pair.AccessToken, rememberMe)
	if err != nil {
		return models.Session{}, err
	}
	slog.Info("AUTHORIZED CLIENT", "message", "operator logged in", "client", c.name, "rememberMe", rememberMe)
	return c.store.Session(ctx)
}

// Logout tells the backend to invalidate the session and clears the local credentials whatever the answer.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.sender.Send(ctx, transport.Request{Method: http.MethodPost, Path: transport.LogoutPath, Body: json.RawMessage(`{}`)})
	if err != nil {
		slog.Info("AUTHORIZED CLIENT", "message", "backend logout failed, clearing the local session anyway", "client", c.name, "error", err)
	}
	err = c.store.ClearAll(ctx)
	if err != nil {
		return fmt.Errorf("cannot clear the session: %w", err)
	}
	return nil
}

// Verify checks that the backend still accepts the session, refreshing the access token if needed.
func (c *Client) Verify(ctx context.Context) error {
	_, err := c.Get(ctx, transport.VerifyPath)
	return err
}

// Refresh forces a token refresh, joining the one in flight if any.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	return c.coordinator.Refresh(ctx)
}

func (c *Client) Session(ctx context.Context) (models.Session, error) {
	return c.store.Session(ctx)
}

// checkRole reads the roles claim without verifying the signature, the backend verifies every request anyway.
func checkRole(accessToken, role string) error {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(accessToken, claims)
	if err != nil {
		return fmt.Errorf("%w: cannot read the access token: %w", apperrors.ErrRoleNotAllowed, err)
	}
	if slices.Contains(claimValues(claims["roles"]), role) || slices.Contains(claimValues(claims["role"]), role) {
		return nil
	}
	return apperrors.ErrRoleNotAllowed
}

func claimValues(claim any) []string {
	switch v := claim.(type) {
	case string:
		return []string{v}
	case []any:
		output := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				output = append(output, s)
			}
		}
		return output
	default:
		return nil
	}
}
