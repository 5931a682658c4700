package cmd

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var errInputClosed = errors.New("input closed")

// lineInput reads answers line by line. Secrets are read without echo when in is a terminal.
type lineInput struct {
	in io.Reader
	sc *bufio.Scanner
}

func newLineInput(in io.Reader) *lineInput {
	return &lineInput{in: in, sc: bufio.NewScanner(in)}
}

func (l *lineInput) line() (string, error) {
	if !l.sc.Scan() {
		if err := l.sc.Err(); err != nil {
			return "", err
		}
		return "", errInputClosed
	}
	return strings.TrimRight(l.sc.Text(), "\r"), nil
}

func (l *lineInput) secret(p *printer) (string, error) {
	if f, ok := l.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		p.Println("")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return l.line()
}
