package mail

import (
	"fmt"
	"strings"
)

const purposePasswordReset = "password_reset"

// renderOTPMessage builds a full RFC 5322 message (headers + multipart body)
// for the given OTP purpose.
func renderOTPMessage(from, to, code, purpose, displayName string) string {
	subject := "Verify Your Email Address to Complete Registration"
	if purpose == purposePasswordReset {
		subject = "Reset Password - Zacode Account Recovery"
	}

	boundary := "zacode-otp-boundary"
	headers := []string{
		fmt.Sprintf("From: %s", from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", escapeHeader(subject)),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", boundary),
		"",
	}

	var body strings.Builder
	body.WriteString(strings.Join(headers, "\r\n"))
	body.WriteString("\r\n")

	body.WriteString("--" + boundary + "\r\n")
	body.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	body.WriteString(otpTextBody(code, purpose, displayName))
	body.WriteString("\r\n")

	body.WriteString("--" + boundary + "\r\n")
	body.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	body.WriteString(otpHTMLBody(code, purpose, displayName))
	body.WriteString("\r\n")

	body.WriteString("--" + boundary + "--\r\n")
	return body.String()
}

func otpTextBody(code, purpose, displayName string) string {
	if purpose == purposePasswordReset {
		return fmt.Sprintf(
			"Hi %s,\n\nYour password reset OTP is: %s. This code will expire in 10 minutes.\n\nIf you did not request this, please ignore this email.",
			displayName, code)
	}
	return fmt.Sprintf(
		"Hello %s,\n\nYour email verification OTP is: %s. This code will expire in 10 minutes.\n\nThank you for signing up with Zacode!",
		displayName, code)
}

func otpHTMLBody(code, purpose, displayName string) string {
	title := "Welcome to Zacode!"
	intro := "Thank you for signing up with Zacode! To secure your account, please use the following OTP to verify your email address:"
	outro := "If you did not register with us, please ignore this email."
	if purpose == purposePasswordReset {
		title = "Password Reset Request"
		intro = "Use the OTP below to reset your password. Do not share this code with anyone."
		outro = "If you did not request a password reset, please ignore this email or contact support."
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
      <h1 style="font-size: 24px;">%s</h1>
      <p>Hello <strong>%s</strong>,</p>
      <p>%s</p>
      <div style="background-color: #f8f9fa; padding: 20px; text-align: center; margin: 25px 0;">
        <span style="font-size: 28px; font-weight: bold; letter-spacing: 8px;">%s</span>
        <p style="color: #6c757d; font-size: 14px;">This code will expire in 10 minutes</p>
      </div>
      <p>%s</p>
      <p style="color: #666666;">Best regards,<br>Zacode Team</p>
    </div>
  </body>
</html>`, title, displayName, intro, code, outro)
}

func escapeHeader(value string) string {
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return value
}
