package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readPassphrase prompts on out and reads one line from in without echo when
// in is a terminal. Piped input is read as a plain line.
func readPassphrase(prompt string, in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, prompt)
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readNewPassphrase asks twice and requires both entries to match.
func readNewPassphrase(in io.Reader, out io.Writer) (string, error) {
	r := bufio.NewReader(in)
	var src io.Reader = r
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		src = f
	}

	first, err := readPassphrase("New passphrase: ", src, out)
	if err != nil {
		return "", err
	}
	second, err := readPassphrase("Repeat passphrase: ", src, out)
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passphrases do not match")
	}
	if first == "" {
		return "", errors.New("passphrase must not be empty")
	}
	return first, nil
}
