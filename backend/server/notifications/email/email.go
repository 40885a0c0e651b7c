package email

import (
	"fmt"
	"net/smtp"
)

// smtpServer holds the address of the SMTP server used to send emails.
var smtpServer string

// auth holds the credentials for the SMTP server, initialized by
// InitEmailService.
var auth smtp.Auth

// fromEmail holds the sender address used in the "From" header of every
// email this service sends.
var fromEmail string

// InitEmailService configures the email service with the sender's address
// and password and dials the SMTP server once to verify the connection.
// It returns an error when the server cannot be reached.
func InitEmailService(sender, password string) (bool, error) {
	smtpServer = "smtp.gmail.com:587"
	fromEmail = sender

	auth = smtp.PlainAuth(
		"",
		sender,
		password,
		"smtp.gmail.com",
	)

	c, err := smtp.Dial(smtpServer)
	if err != nil {
		return false, fmt.Errorf("cannot connect to the SMTP server: %v", err)
	}

	if err := c.Close(); err != nil {
		return false, fmt.Errorf("cannot close the SMTP connection: %v", err)
	}

	return true, nil
}

// SendReminder sends a habit reminder email to the given recipient. The
// message names the habit and, when the user has an active streak, how many
// days are on the line.
func SendReminder(to, habitTitle string, streak int) error {
	headers := make(map[string]string)
	headers["From"] = fromEmail
	headers["To"] = to
	headers["Subject"] = fmt.Sprintf("Reminder: %s", habitTitle)
	headers["MIME-version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=\"UTF-8\""

	message := ""
	for k, v := range headers {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}

	streakLine := "<p>Check it off today to start a new streak.</p>"
	if streak > 0 {
		streakLine = fmt.Sprintf("<p>Your current streak is <strong>%d day(s)</strong>. Check it off today to keep it going.</p>", streak)
	}

	body := `
	<html>
		<head>
			<style>
				body {
					font-family: 'Lato', sans-serif;
					margin: 0;
					padding: 0;
				}
				.container {
					max-width: 600px;
					margin: 0 auto;
					padding: 10px;
					border-radius: 4px;
				}
				p {
					line-height: 1.6;
				}
			</style>
		</head>
		<body>
			<div class="container">
				<h1>Hello,</h1>
				<p>You haven't checked off <strong>` + habitTitle + `</strong> yet today.</p>
				` + streakLine + `
			</div>
		</body>
	</html>
	`
	message += "\r\n" + body

	err := smtp.SendMail(
		smtpServer,
		auth,
		fromEmail,
		[]string{to},
		[]byte(message),
	)
	if err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}

	return nil
}
