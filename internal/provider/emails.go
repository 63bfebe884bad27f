package provider

import (
	"bytes"
	"html/template"
)

var verificationTmpl = template.Must(template.New("verify").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Email Verification</title></head>
<body style="margin:0; padding:0; background-color:#f4f6f8; font-family:Arial, Helvetica, sans-serif;">
  <table width="100%" cellpadding="0" cellspacing="0">
    <tr><td align="center" style="padding:30px 0;">
      <table width="600" cellpadding="0" cellspacing="0" style="background:#ffffff; border-radius:6px; padding:30px;">
        <tr><td align="center"><h2 style="color:#333;">Verify Your Email</h2></td></tr>
        <tr><td style="color:#555; font-size:15px; line-height:1.6;">
          <p>Hello,</p>
          <p>Please use the OTP below to verify your email address:</p>
          <p style="text-align:center;">
            <span style="font-size:24px; letter-spacing:4px; background:#f0f2f5; padding:12px 24px; border-radius:6px; font-weight:bold;">{{.Code}}</span>
          </p>
          <p>This OTP is valid for <strong>{{.Minutes}} minutes</strong>.</p>
          <p>If you didn't request this, you can ignore this email.</p>
          <p>Regards,<br><strong>The Support Team</strong></p>
        </td></tr>
      </table>
    </td></tr>
  </table>
</body>
</html>`))

var resetTmpl = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:Arial, sans-serif; background-color:#f4f4f4; margin:0; padding:0;">
  <div style="max-width:600px; margin:20px auto; background-color:#ffffff; border-radius:8px; overflow:hidden;">
    <div style="background-color:#2c3e50; color:#ffffff; padding:30px; text-align:center;">
      <h1 style="margin:0; font-size:28px;">Password Reset Request</h1>
    </div>
    <div style="padding:30px; color:#333;">
      <p>Hello,</p>
      <p>We received a request to reset your password. Click the button below to create a new password:</p>
      <p style="text-align:center;">
        <a href="{{.URL}}" style="display:inline-block; background-color:#3498db; color:#ffffff; padding:12px 30px; text-decoration:none; border-radius:5px; font-weight:bold;">Reset Your Password</a>
      </p>
      <p>Or copy and paste this link in your browser:</p>
      <p style="word-break:break-all; background-color:#f9f9f9; padding:10px; border-radius:3px;">{{.URL}}</p>
      <div style="background-color:#fff3cd; border-left:4px solid #ffc107; padding:15px; margin:20px 0; border-radius:3px;">
        <strong>Security Notice:</strong> This link will expire in {{.Minutes}} minutes. If you did not request a password reset, please ignore this email.
      </div>
      <p>Best regards,<br>The Support Team</p>
    </div>
    <div style="background-color:#ecf0f1; padding:20px; text-align:center; font-size:12px; color:#7f8c8d;">
      <p>This is an automated message, please do not reply to this email.</p>
    </div>
  </div>
</body>
</html>`))

// VerificationEmail renders the OTP email body
func VerificationEmail(code string, minutes int) (string, error) {
	var buf bytes.Buffer
	err := verificationTmpl.Execute(&buf, struct {
		Code    string
		Minutes int
	}{code, minutes})
	return buf.String(), err
}

// ResetPasswordEmail renders the password reset email body
func ResetPasswordEmail(url string, minutes int) (string, error) {
	var buf bytes.Buffer
	err := resetTmpl.Execute(&buf, struct {
		URL     string
		Minutes int
	}{url, minutes})
	return buf.String(), err
}
