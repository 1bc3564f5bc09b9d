package auth

import (
	"fmt"
	"html/template"
	"strings"
)

var verificationTmpl = template.Must(template.New("verify").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 500px; margin: auto; padding: 20px;">
    <h2 style="text-align: center; color: #333;">Verify your email</h2>
    <p style="font-size: 16px; color: #555;">
        Click the link below to verify your email and activate your account.
    </p>
    <div style="text-align: center; margin: 20px 0;">
        <a href="{{.Link}}" target="_blank"
           style="display: inline-block; font-size: 16px; font-weight: bold;
                  color: white; text-decoration: none; padding: 12px 24px;
                  border-radius: 5px; background-color: #007BFF;">
            Verify Now
        </a>
    </div>
    <p style="font-size: 14px; color: #777; text-align: center;">
        If you didn't create an account, you can safely ignore this email.
    </p>
</div>`))

var passwordResetTmpl = template.Must(template.New("reset").Parse(`
<div style="font-family: Arial, sans-serif; max-width: 500px; margin: auto; padding: 20px;
            border: 1px solid #ddd; border-radius: 10px; background-color: #f9f9f9;">
    <h2 style="text-align: center; color: #333;">Password Reset Request</h2>
    <p style="font-size: 16px; color: #555;">
        Hello <strong>{{.Email}}</strong>,
    </p>
    <p style="font-size: 16px; color: #555;">
        We received a request to reset your password. If you made this request,
        please click the button below to reset your password.
    </p>
    <div style="text-align: center; margin: 20px 0;">
        <a href="{{.Link}}" target="_blank"
           style="display: inline-block; font-size: 16px; font-weight: bold;
                  color: white; text-decoration: none; padding: 12px 24px;
                  border-radius: 5px; background-color: #007BFF;">
            Reset Password
        </a>
    </div>
    <p style="font-size: 14px; color: #777; text-align: center;">
        If you didn't request this, you can safely ignore this email.
    </p>
</div>`))

func renderVerificationEmail(backendURL, token string) (string, error) {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", backendURL, token)
	var b strings.Builder
	if err := verificationTmpl.Execute(&b, struct{ Link string }{link}); err != nil {
		return "", err
	}
	return b.String(), nil
}

func renderPasswordResetEmail(frontendURL, email, token string) (string, error) {
	link := fmt.Sprintf("%s/reset-password?token=%s", frontendURL, token)
	var b strings.Builder
	if err := passwordResetTmpl.Execute(&b, struct{ Email, Link string }{email, link}); err != nil {
		return "", err
	}
	return b.String(), nil
}
