package service

import (
	"context"
	"fmt"
)

// MailSender is the outbound notification capability. The concrete
// implementation lives in app/mailer.
type MailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

func buildVerificationEmail(firstName, verificationURL string) (subject, body string) {
	subject = "Verify Your Email Address"
	body = fmt.Sprintf(`Hello %s,

Thank you for registering with us!

Please verify your email address by clicking the link below:
%s

This link will expire in 24 hours.

If you did not create an account, please ignore this email.`, firstName, verificationURL)
	return subject, body
}

func buildPasswordResetEmail(firstName, resetURL string) (subject, body string) {
	subject = "Reset Your Password"
	body = fmt.Sprintf(`Hello %s,

We received a request to reset your password.

Please click the link below to reset your password:
%s

This link will expire in 1 hour.

If you did not request a password reset, please ignore this email.`, firstName, resetURL)
	return subject, body
}
