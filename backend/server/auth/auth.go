package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ascentapp/ascent/backend/models"
	storage "github.com/ascentapp/ascent/backend/storage/persistent"
	"github.com/ascentapp/ascent/lib/utils"
	"github.com/form3tech-oss/jwt-go"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// store is a global variable that holds an interface to the storage system.
var store storage.StorageInterface

// jwtSigningKey is a global variable that holds the key used for signing and verifying JWT tokens.
var jwtSigningKey string

// Token lifetimes. Access tokens are short-lived; refresh tokens are
// persisted so they can be revoked server-side.
const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 30 * 24 * time.Hour
)

// InitAuth wires the authentication service to a storage backend and sets the
// JWT signing key. It must be called before any other function in this
// package.
func InitAuth(s storage.StorageInterface, signingKey string) {
	store = s
	jwtSigningKey = signingKey
}

// CreateAuthToken creates a signed short-lived JWT access token for a user.
func CreateAuthToken(userId string) (string, error) {
	claims := jwt.MapClaims{
		"id":  userId,
		"exp": time.Now().Add(accessTokenTTL).Unix(),
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString([]byte(jwtSigningKey))

	if err != nil {
		return "", errors.New("failed to create auth token")
	}

	return signedToken, nil
}

// CreateRefreshToken creates a signed refresh JWT for a user and persists it
// so it can be revoked.
func CreateRefreshToken(ctx context.Context, user *models.User) (string, error) {
	expiry := time.Now().Add(refreshTokenTTL)
	claims := jwt.MapClaims{
		"id":  user.ID.Hex(),
		"exp": expiry.Unix(),
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString([]byte(jwtSigningKey))
	if err != nil {
		return "", errors.New("failed to create refresh token")
	}

	_, err = store.AddRefreshToken(ctx, &models.RefreshToken{
		UserID: user.ID,
		Token:  signedToken,
		Expiry: expiry,
	})
	if err != nil {
		return "", err
	}

	return signedToken, nil
}

// CreateTokens creates both an access token and a refresh token for a user.
func CreateTokens(ctx context.Context, user *models.User) (string, string, error) {
	authToken, err := CreateAuthToken(user.ID.Hex())
	if err != nil {
		return "", "", err
	}

	refreshToken, err := CreateRefreshToken(ctx, user)
	if err != nil {
		return "", "", err
	}

	return authToken, refreshToken, nil
}

// SignUp registers a new user. It validates the credentials and the optional
// IANA timezone, checks for existing accounts, hashes the password and
// creates the user, then returns a fresh token pair.
func SignUp(ctx context.Context, username, email, password, timezone string) (string, string, error) {

	if len(username) < 2 {
		return "", "", errors.New("invalid username")
	}

	if !utils.ValidateEmail(email) {
		return "", "", errors.New("invalid email format")
	}

	if !utils.ValidatePassword(password) {
		return "", "", errors.New("password must be at least 8 characters and contain both letters and numbers")
	}

	if timezone != "" {
		if _, err := time.LoadLocation(timezone); err != nil {
			return "", "", errors.New("invalid timezone")
		}
	}

	if _, err := store.FindUserByEmail(ctx, email); err == nil {
		return "", "", errors.New("an account with this email already exists")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", "", err
	}

	if _, err := store.FindUserByUsername(ctx, username); err == nil {
		return "", "", errors.New("username is taken")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", "", err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
		Timezone:     timezone,
		CreatedAt:    time.Now(),
	}

	user, err = store.AddUser(ctx, user)
	if err != nil {
		return "", "", err
	}

	return CreateTokens(ctx, user)
}

// SignIn authenticates a user by username and password and returns a fresh
// token pair.
func SignIn(ctx context.Context, username, password string) (string, string, error) {

	if len(username) < 2 {
		return "", "", errors.New("invalid username")
	}

	foundUser, err := store.FindUserByUsername(ctx, username)
	if err != nil {
		return "", "", errors.New("authentication failed")
	}

	err = bcrypt.CompareHashAndPassword([]byte(foundUser.PasswordHash), []byte(password))
	if err != nil {
		return "", "", errors.New("authentication failed")
	}

	return CreateTokens(ctx, foundUser)
}

// Refresh validates a refresh token against both its signature and the
// persisted token record, then rotates it: the old record is revoked and a
// new token pair is issued.
func Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(jwtSigningKey), nil
	})

	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok {
			if ve.Errors == jwt.ValidationErrorExpired {
				return "", "", errors.New("expired refresh token")
			}
		}
		return "", "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", "", errors.New("invalid refresh token")
	}

	record, err := store.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", "", errors.New("invalid refresh token")
	}
	if record.UserID.Hex() != claims["id"] || record.Expiry.Before(time.Now()) {
		return "", "", errors.New("invalid refresh token")
	}

	user, err := store.FindUserByID(ctx, record.UserID)
	if err != nil {
		return "", "", errors.New("invalid refresh token")
	}

	// Rotate: revoke every token issued to the user before issuing anew.
	if _, err := store.DeleteRefreshTokensByUser(ctx, user.ID); err != nil {
		return "", "", err
	}

	return CreateTokens(ctx, user)
}

// DeleteUser deletes a user record and everything the user owns.
func DeleteUser(ctx context.Context, userId string) (bool, error) {
	objectID, err := primitive.ObjectIDFromHex(userId)
	if err != nil {
		return false, err
	}

	if _, err = store.DeleteUser(ctx, objectID); err != nil {
		return false, errors.New("error deleting user")
	}
	return true, nil
}
