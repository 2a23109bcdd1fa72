// Package mailer defines the email message model shared by all delivery
// transports, plus a renderer that turns markdown notification templates
// into HTML email bodies.
//
// The package separates message preparation from delivery: transports
// implement the Sender interface and receive a fully-prepared Email, so the
// SMTP and Resend providers are interchangeable.
//
// # Templates
//
// Notification templates are markdown files with optional YAML frontmatter.
// The Subject field supports Go template syntax and is executed with the
// same data as the body:
//
//	---
//	Subject: "Portfolio Contact: {{.Subject}}"
//	---
//	**Name:** {{.Name}}
//
//	{{.Message}}
//
// Single newlines in template output become <br> in the rendered HTML
// (hard wraps), so multi-line user input survives the markdown conversion.
package mailer
