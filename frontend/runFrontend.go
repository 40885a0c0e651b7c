package frontend

import (
	"fmt"
	"os"

	"github.com/ascentapp/ascent/frontend/client"
	"github.com/ascentapp/ascent/frontend/cmd"
	"github.com/joho/godotenv"
	"github.com/zalando/go-keyring"
)

// RunFrontend configures the API client from the environment and starts the
// interactive shell.
func RunFrontend() {
	if err := godotenv.Load("frontend/.env"); err != nil {
		fmt.Println("Error loading frontend .env file")
	}

	signingKey := os.Getenv("JWT_SIGNING_KEY")
	authToken := os.Getenv("AUTH_TOKEN")
	authTokenRefresh := os.Getenv("AUTH_TOKEN_REFRESH")
	serverURL := os.Getenv("SERVER_URL")

	// Drop any tokens left over from a previous run so the shell always
	// starts in the guest state.
	keyring.Delete(client.KeyringService, authToken)
	keyring.Delete(client.KeyringService, authTokenRefresh)

	client.InitClient(serverURL, signingKey, authToken, authTokenRefresh)
	cmd.InitCmd()
	cmd.Execute()
}
