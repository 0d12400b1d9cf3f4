package client

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// Login describes the console dialogue performed on Telnet and serial
// transports before NETCONF starts.
type Login struct {
	Username string
	Password string
	// Command is sent after authentication to start the NETCONF service,
	// e.g. "netconf" or "xml-mode netconf need-trailer".
	Command string

	// Prompts default to "ogin:" and "assword:".
	UsernamePrompt string
	PasswordPrompt string
}

// maxPromptScan bounds the console output examined while waiting for a prompt.
const maxPromptScan = 64 * 1024

func (l *Login) run(rw io.ReadWriter) error {
	if l.Username != "" {
		if err := expect(rw, orDefault(l.UsernamePrompt, "ogin:")); err != nil {
			return err
		}
		if err := sendLine(rw, l.Username); err != nil {
			return err
		}
	}
	if l.Password != "" {
		if err := expect(rw, orDefault(l.PasswordPrompt, "assword:")); err != nil {
			return err
		}
		if err := sendLine(rw, l.Password); err != nil {
			return err
		}
	}
	if l.Command != "" {
		return sendLine(rw, l.Command)
	}
	return nil
}

// expect reads from r until prompt has been seen.
func expect(r io.Reader, prompt string) error {
	var seen []byte
	b := make([]byte, 1)
	for len(seen) < maxPromptScan {
		if _, err := io.ReadFull(r, b); err != nil {
			return errors.Wrapf(err, "waiting for %q", prompt)
		}
		seen = append(seen, b[0])
		if bytes.HasSuffix(seen, []byte(prompt)) {
			return nil
		}
	}
	return errors.Errorf("prompt %q not found", prompt)
}

func sendLine(w io.Writer, line string) error {
	_, err := w.Write([]byte(line + "\r\n"))
	return err
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
