package main

import (
	"bufio"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"strings"

	"github.com/aussiebroadwan/xdauth/internal/captcha"
	"golang.org/x/term"
)

// prompter reads answers line by line from in and writes questions to out.
type prompter struct {
	raw io.Reader
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{raw: in, in: bufio.NewReader(in), out: out}
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// askSecret reads an answer without echo when in is a terminal. Piped
// input is read like any other answer.
func (p *prompter) askSecret(question string) (string, error) {
	f, ok := p.raw.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.ask(question)
	}
	fmt.Fprint(p.out, question)
	secret, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

// textSolver writes each captcha to a temporary PNG and asks for the
// characters. An empty answer cancels the login.
func (p *prompter) textSolver() captcha.TextSolver {
	return func(img image.Image) (string, error) {
		f, err := os.CreateTemp("", "xdauth-captcha-*.png")
		if err != nil {
			return "", err
		}
		defer os.Remove(f.Name())

		if err := png.Encode(f, img); err != nil {
			_ = f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}

		answer, err := p.ask(fmt.Sprintf("captcha saved to %s, enter the characters: ", f.Name()))
		if err != nil {
			return "", captcha.Canceled(err.Error())
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			return "", captcha.Canceled("no answer")
		}
		return answer, nil
	}
}
