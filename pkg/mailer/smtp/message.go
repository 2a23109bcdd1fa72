package smtp

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mailrelay/pkg/mailer"
)

// buildMessage assembles the RFC 5322 message body written to the DATA
// command. Non-ASCII subjects are Q-encoded. When a plain-text alternative
// is present the body is multipart/alternative, text part first.
func buildMessage(from string, email *mailer.Email) []byte {
	var buf bytes.Buffer

	writeHeader(&buf, "From", from)
	writeHeader(&buf, "To", strings.Join(email.To, ", "))
	if email.ReplyTo != "" {
		writeHeader(&buf, "Reply-To", email.ReplyTo)
	}
	writeHeader(&buf, "Subject", mime.QEncoding.Encode("utf-8", email.Subject))
	writeHeader(&buf, "Date", time.Now().Format(time.RFC1123Z))
	writeHeader(&buf, "Message-ID", fmt.Sprintf("<%s@mailrelay>", uuid.NewString()))
	writeHeader(&buf, "MIME-Version", "1.0")
	for name, value := range email.Headers {
		writeHeader(&buf, name, value)
	}

	if email.Text == "" {
		writeHeader(&buf, "Content-Type", `text/html; charset="UTF-8"`)
		buf.WriteString("\r\n")
		buf.WriteString(email.HTML)
		buf.WriteString("\r\n")
		return buf.Bytes()
	}

	boundary := strings.ReplaceAll(uuid.NewString(), "-", "")
	writeHeader(&buf, "Content-Type", fmt.Sprintf(`multipart/alternative; boundary="%s"`, boundary))
	buf.WriteString("\r\n")

	writePart(&buf, boundary, `text/plain; charset="UTF-8"`, email.Text)
	writePart(&buf, boundary, `text/html; charset="UTF-8"`, email.HTML)
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}

func writeHeader(buf *bytes.Buffer, name, value string) {
	fmt.Fprintf(buf, "%s: %s\r\n", name, value)
}

func writePart(buf *bytes.Buffer, boundary, contentType, body string) {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	writeHeader(buf, "Content-Type", contentType)
	buf.WriteString("\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")
}
