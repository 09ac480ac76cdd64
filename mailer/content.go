package mailer

import "github.com/matcornic/hermes/v2"

const (
	actionColor = "#22BC66"
	helpOutro   = "Need help, or have questions? Just reply to this email, we'd love to help."

	EmailVerificationSubject = "Please verify your email"
	ForgotPasswordSubject    = "Password reset request"
)

func EmailVerificationContent(username, verificationURL string) hermes.Email {
	return hermes.Email{
		Body: hermes.Body{
			Name:   username,
			Intros: []string{"Welcome to our app! We're very excited to have you on board."},
			Actions: []hermes.Action{{
				Instructions: "To verify your email please click on the following button:",
				Button: hermes.Button{
					Color: actionColor,
					Text:  "Verify your email",
					Link:  verificationURL,
				},
			}},
			Outros: []string{helpOutro},
		},
	}
}

func ForgotPasswordContent(username, passwordResetURL string) hermes.Email {
	return hermes.Email{
		Body: hermes.Body{
			Name:   username,
			Intros: []string{"We got a request to reset the password of your account."},
			Actions: []hermes.Action{{
				Instructions: "To reset your password click on the following button or link:",
				Button: hermes.Button{
					Color: actionColor,
					Text:  "Reset password",
					Link:  passwordResetURL,
				},
			}},
			Outros: []string{helpOutro},
		},
	}
}

// ActionLink returns the first button link of content, or "".
func ActionLink(content hermes.Email) string {
	if len(content.Body.Actions) == 0 {
		return ""
	}
	return content.Body.Actions[0].Button.Link
}
