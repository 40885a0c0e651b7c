package cmd

import (
	"fmt"
	"os"
	"strings"

	ishell "github.com/abiosoft/ishell"
	"github.com/ascentapp/ascent/frontend/client"
	"github.com/ascentapp/ascent/lib/utils"
	"github.com/common-nighthawk/go-figure"
)

// guestCommands holds the commands that are available to users who have not signed in.
var guestCommands []Command

// userCommands holds the commands that are available only to signed in users.
var userCommands []Command

// commonCommands holds the commands that are available regardless of login status.
var commonCommands []Command

// loggedIn indicates whether a user is currently signed in.
var loggedIn bool

// shell is the interactive shell instance for this application.
var shell *ishell.Shell

// Command defines a user command in the shell. Each command has a Name, a
// Desc, and the Func executed when the command is invoked.
type Command struct {
	Name string
	Desc string
	Func func(c *ishell.Context)
}

// switchToUserCommands swaps the guest command set for the signed-in one.
func switchToUserCommands() {
	loggedIn = true
	for _, command := range guestCommands {
		shell.DeleteCmd(command.Name)
	}
	addCommands(shell, userCommands)
}

// switchToGuestCommands swaps the signed-in command set for the guest one.
func switchToGuestCommands() {
	loggedIn = false
	for _, command := range userCommands {
		shell.DeleteCmd(command.Name)
	}
	addCommands(shell, guestCommands)
}

// InitCmd initializes the shell and sets up the commands for the guest and
// signed-in scenarios.
func InitCmd() {

	shell = ishell.New()

	guestCommands = []Command{
		{
			Name: "signin",
			Desc: "Sign in to your account",
			Func: func(c *ishell.Context) {
				var username, password string
				for {
					c.Print("Enter Username: ")
					username = c.ReadLine()

					if len(username) > 1 {
						break
					}
					c.Println("Username must be longer than 1 character.")
				}

				for {
					c.Print("Enter Password: ")
					password = c.ReadPassword()

					if len(password) > 0 {
						break
					}
					c.Println("Password cannot be empty.")
				}

				if err := client.SignIn(username, password); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Welcome back, you are now signed in.")
				switchToUserCommands()
			},
		},
		{
			Name: "signup",
			Desc: "Sign up for a new account",
			Func: func(c *ishell.Context) {
				var username, email, password, timezone string
				for {
					c.Print("Enter Username: ")
					username = c.ReadLine()

					if len(username) > 1 {
						break
					}
					c.Println("Username must be longer than 1 character.")
				}

				for {
					c.Print("Enter Email: ")
					email = c.ReadLine()

					if utils.ValidateEmail(email) {
						break
					}
					c.Println("Email is not valid.")
				}

				for {
					c.Print("Enter Password: ")
					password = c.ReadPassword()

					if utils.ValidatePassword(password) {
						c.Print("Confirm Password: ")
						confirmPassword := c.ReadPassword()

						if password == confirmPassword {
							break
						}
						c.Println()
						c.Println("Passwords do not match. Please try again.")
						c.Println()
					} else {
						c.Println()
						c.Println("Password must be at least 8 characters and contain both letters and numbers.")
						c.Println()
					}
				}

				c.Print("Enter Timezone (e.g. America/New_York, empty for UTC): ")
				timezone = strings.TrimSpace(c.ReadLine())

				if err := client.SignUp(username, email, password, timezone); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("Account created successfully. You are now signed in.")
				switchToUserCommands()
			},
		},
	}

	userCommands = []Command{
		{
			Name: "signout",
			Desc: "Sign out from your account",
			Func: func(c *ishell.Context) {
				if err := client.SignOut(); err != nil {
					utils.PrintError(err.Error())
					return
				}
				c.Println("You are now signed out.")
				switchToGuestCommands()
			},
		},
		{
			Name: "deletemyacc",
			Desc: "Delete your account and all its data",
			Func: func(c *ishell.Context) {
				for {
					c.Print("Are you sure you want to delete your account? (yes/no): ")
					response := strings.ToLower(c.ReadLine())
					if response == "no" {
						return
					} else if response == "yes" {
						if err := client.DeleteAccount(); err != nil {
							utils.PrintError(err.Error())
							return
						}
						c.Println("Account deleted successfully.")
						switchToGuestCommands()
						return
					}
					c.Println("Invalid response. Please type 'yes' or 'no'.")
				}
			},
		},
	}
	userCommands = append(userCommands, trackerCommands()...)

	commonCommands = []Command{
		{
			Name: "exit",
			Desc: "Exit the application",
			Func: func(c *ishell.Context) {
				fmt.Println("Goodbye!")
				os.Exit(0)
			},
		},
	}

	// The help command is created separately to avoid the cyclic dependency
	commonCommands = append(commonCommands, Command{
		Name: "help",
		Desc: "List available commands",
		Func: func(c *ishell.Context) {
			c.Println("Available commands:")
			if loggedIn {
				for _, command := range userCommands {
					c.Println("  |-- '" + command.Name + "' : " + command.Desc)
				}
			} else {
				for _, command := range guestCommands {
					c.Println("  |-- '" + command.Name + "' : " + command.Desc)
				}
			}
			for _, command := range commonCommands {
				c.Println("  |-- '" + command.Name + "' : " + command.Desc)
			}
			c.Println()
		},
	})
}

// addCommands adds the given commands to the shell.
func addCommands(shell *ishell.Shell, commands []Command) {
	for _, command := range commands {
		shell.AddCmd(&ishell.Cmd{
			Name: command.Name,
			Help: command.Desc,
			Func: command.Func,
		})
	}
}

// Execute welcomes the user, adds the common and guest commands to the
// shell, and runs the shell.
func Execute() {
	shell.Println()
	figure.NewFigure("Ascent", "basic", true).Print()
	shell.Println("Welcome to Ascent, the commitment tracker CLI. Type 'help' to see a list of commands.")

	addCommands(shell, commonCommands)
	addCommands(shell, guestCommands)

	shell.Run()
}
