package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/form3tech-oss/jwt-go"
	"github.com/zalando/go-keyring"
)

// jwtSigningKey is used to verify JWT tokens locally before sending them to
// the server.
var jwtSigningKey string

// KeyringKey is used to store and retrieve the JWT token from the system keyring.
var KeyringKey string

// RefreshKeyringKey is used to store and retrieve the refresh token from the system keyring.
var RefreshKeyringKey string

// ServerURL is the URL of the server the client is connecting to.
var ServerURL string

// httpClient is the HTTP client used to make requests to the server.
var httpClient = &http.Client{}

// KeyringService is the name of the service in the system keyring where the
// JWT token and refresh token are stored.
const KeyringService = "Ascent"

// TokenResult holds the token pair returned by the auth endpoints.
type TokenResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// InitClient initializes the package globals. This function must be called
// before using any other functions in the package.
func InitClient(serverURL, signingKey, authToken, authTokenRefresh string) {
	jwtSigningKey = signingKey
	KeyringKey = authToken
	RefreshKeyringKey = authTokenRefresh
	ServerURL = serverURL
}

// decodeJWT decodes a JWT token and returns the claims contained within it.
// Returns an error if the token is invalid or expired.
func decodeJWT(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSigningKey), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// isJwtTokenInKeyring checks if the system keyring contains a JWT token.
// Returns 'true' and the token if it exists, 'false' and an empty string if
// it doesn't.
func isJwtTokenInKeyring() (bool, string, error) {
	token, err := keyring.Get(KeyringService, KeyringKey)
	if err != nil {
		if err == keyring.ErrNotFound {
			return false, "", nil
		}
		return false, "", errors.New("failed to access keyring: " + err.Error())
	}
	return true, token, nil
}

// storeTokens saves the token pair to the system keyring. When saving the
// refresh token fails, the access token is removed again so the keyring
// never holds a half-written pair.
func storeTokens(token, refreshToken string) error {
	if err := keyring.Set(KeyringService, KeyringKey, token); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := keyring.Set(KeyringService, RefreshKeyringKey, refreshToken); err != nil {
			keyring.Delete(KeyringService, KeyringKey)
			return err
		}
	}
	return nil
}

// ClearKeyring clears the JWT token and refresh token from the system
// keyring atomically. If deleting the refresh token fails, the access token
// is restored.
func ClearKeyring() error {
	accessToken, err := keyring.Get(KeyringService, KeyringKey)
	if err != nil {
		return errors.New("failed to retrieve access token from keyring: " + err.Error())
	}

	if err := keyring.Delete(KeyringService, KeyringKey); err != nil {
		return errors.New("failed to delete access token from keyring: " + err.Error())
	}

	if err := keyring.Delete(KeyringService, RefreshKeyringKey); err != nil {
		keyring.Set(KeyringService, KeyringKey, accessToken)
		return errors.New("failed to delete refresh token from keyring: " + err.Error())
	}

	return nil
}

// IsUserAuthenticated checks if a valid JWT token exists in the system
// keyring. If the stored token is expired, it tries to refresh it with the
// refresh token. Returns the usable token, or an empty string when no user
// is signed in.
func IsUserAuthenticated() (string, error) {
	hasJwt, tokenStr, err := isJwtTokenInKeyring()
	if err != nil {
		return "", err
	}

	if !hasJwt {
		return "", nil
	}

	if _, err := decodeJWT(tokenStr); err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok {
			if ve.Errors&jwt.ValidationErrorExpired != 0 {
				newToken, refreshErr := RefreshAccessToken()
				if refreshErr != nil {
					return "", refreshErr
				}
				return newToken, nil
			}
		}
		return "", err
	}

	return tokenStr, nil
}

// apiError is the error body every server endpoint returns.
type apiError struct {
	Error string `json:"error"`
}

// sendRequest sends a JSON request to the server and decodes the response
// into out when out is non-nil. When the server answers with an error
// status, the error message from the response body is returned verbatim.
func sendRequest(method, path string, token *string, reqBody, out interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to create request: %v", err)
		}
		bodyReader = bytes.NewBuffer(encoded)
	}

	req, err := http.NewRequest(method, ServerURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != nil {
		req.Header.Add("Authorization", "Bearer "+*token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var serverErr apiError
		if err := json.Unmarshal(bodyBytes, &serverErr); err == nil && serverErr.Error != "" {
			return errors.New(serverErr.Error)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	if out != nil && len(bodyBytes) > 0 {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return err
		}
	}

	return nil
}

// RefreshAccessToken exchanges the stored refresh token for a new token
// pair and saves it. Returns the new access token.
func RefreshAccessToken() (string, error) {
	refreshToken, err := keyring.Get(KeyringService, RefreshKeyringKey)
	if err != nil {
		return "", err
	}

	var result TokenResult
	err = sendRequest("POST", "/auth/refresh", nil, map[string]string{"refreshToken": refreshToken}, &result)
	if err != nil {
		return "", err
	}

	if err := storeTokens(result.Token, result.RefreshToken); err != nil {
		return "", err
	}

	return result.Token, nil
}

// SignIn attempts to sign in a user with the provided username and
// password, saving the returned token pair to the keyring.
func SignIn(username, password string) error {
	isSignedIn, _, err := isJwtTokenInKeyring()
	if err != nil {
		return err
	}
	if isSignedIn {
		return errors.New("a user is already signed in")
	}

	var result TokenResult
	err = sendRequest("POST", "/auth/signin", nil, map[string]string{
		"username": username,
		"password": password,
	}, &result)
	if err != nil {
		return err
	}

	return storeTokens(result.Token, result.RefreshToken)
}

// SignUp attempts to sign up a new user. The timezone is the IANA zone name
// the user's day boundaries follow; an empty string means UTC.
func SignUp(username, email, password, timezone string) error {
	isSignedIn, _, err := isJwtTokenInKeyring()
	if err != nil {
		return err
	}
	if isSignedIn {
		return errors.New("a user is already signed in")
	}

	var result TokenResult
	err = sendRequest("POST", "/auth/signup", nil, map[string]string{
		"username": username,
		"email":    email,
		"password": password,
		"timezone": timezone,
	}, &result)
	if err != nil {
		return err
	}

	return storeTokens(result.Token, result.RefreshToken)
}

// SignOut signs out the current user by removing the tokens from the system
// keyring. The refresh token stays valid server-side until it expires or
// the next signin rotates it.
func SignOut() error {
	token, err := IsUserAuthenticated()
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("no user is currently signed in")
	}

	return ClearKeyring()
}

// DeleteAccount deletes the currently authenticated user and all their data
// on the server, then clears the local keyring.
func DeleteAccount() error {
	token, err := IsUserAuthenticated()
	if err != nil {
		return err
	}
	if token == "" {
		return errors.New("no user is currently signed in")
	}

	if err := sendRequest("DELETE", "/auth/account", &token, nil, nil); err != nil {
		return err
	}

	return ClearKeyring()
}
