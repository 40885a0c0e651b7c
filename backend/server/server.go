package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ascentapp/ascent/backend/tracker"
	storage "github.com/ascentapp/ascent/backend/storage/persistent"
	"github.com/form3tech-oss/jwt-go"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// contextKey is the type of the keys this package stores on request contexts.
type contextKey string

// userIDKey holds the authenticated user's id hex string.
const userIDKey contextKey = "userID"

// jwtMiddleware reads the JWT from the Authorization header of the HTTP
// request. If the token is present and valid, the user's id extracted from
// the claims is injected into the request's context under userIDKey.
//
// The middleware never rejects the request itself. Handlers that require
// authentication check for the user id via authedUser and respond with 401
// when it is missing, so public routes like signup and signin can share the
// same router.
func jwtMiddleware(signingKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader != "" {
			splitToken := strings.Split(authHeader, "Bearer ")
			if len(splitToken) == 2 {
				token, err := jwt.Parse(splitToken[1], func(token *jwt.Token) (interface{}, error) {
					if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
					}
					return []byte(signingKey), nil
				})
				if err != nil {
					log.Println("error occurred while parsing JWT token:", err)
				} else if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
					if id, ok := claims["id"].(string); ok {
						ctx := context.WithValue(r.Context(), userIDKey, id)
						r = r.WithContext(ctx)
					}
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics and provides a generic error message to the client.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %s\n", err)
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the REST server. Runs on localhost:8080 by
// default. The function requires a serverURL (the URL where the server must
// be deployed), the JWT signing key, and a connected storage backend.
func Start(serverURL, signingKey string, store storage.StorageInterface) {
	api := &API{store: store, tracker: tracker.New(store)}

	r := mux.NewRouter()
	api.registerRoutes(r)

	// Every route goes through JWT extraction and panic recovery.
	handler := recoveryMiddleware(jwtMiddleware(signingKey, r))

	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})
	corsRouter := handlers.CORS(corsOrigins, corsMethods, corsHeaders)(handler)

	loggingRouter := handlers.LoggingHandler(os.Stdout, corsRouter)

	u, err := url.Parse(serverURL)
	if err != nil {
		panic(err)
	}

	server := &http.Server{
		Handler:      loggingRouter,
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	log.Fatal(server.ListenAndServe())
}
