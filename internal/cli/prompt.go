package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// errAborted is returned when the operator cancels a prompt.
var errAborted = errors.New("prompt aborted")

// prompter asks the operator for input. Implementations must release the
// terminal in Close so SteamCMD can read from it afterwards.
type prompter interface {
	Line(label, def string) (string, error)
	YesNo(label string, def bool) (bool, error)
	Password(label string) ([]byte, error)
	Close() error
}

// stdin is shared by prompts and the SteamCMD operator pass-through so that
// buffered input is never lost between them.
var stdin io.Reader = bufio.NewReader(os.Stdin)

// operatorReader is the input forwarded to SteamCMD during a first login. A
// terminal is handed over directly so the login can cancel its pending read
// before the progress UI takes stdin; piped input keeps the shared buffer.
func operatorReader() io.Reader {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return os.Stdin
	}
	return stdin
}

// newPrompter is replaced in tests.
var newPrompter = func(out io.Writer) prompter {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return newTermPrompter(out)
	}
	return newStreamPrompter(stdin, out)
}

// termPrompter uses liner for line editing and x/term for hidden input.
type termPrompter struct {
	line   *liner.State
	out    io.Writer
	closed bool
}

func newTermPrompter(out io.Writer) *termPrompter {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	return &termPrompter{line: line, out: out}
}

func (p *termPrompter) Line(label, def string) (string, error) {
	prompt := label + ": "
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]: ", label, def)
	}
	answer, err := p.line.Prompt(prompt)
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return "", errAborted
		}
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return def, nil
	}
	p.line.AppendHistory(answer)
	return answer, nil
}

func (p *termPrompter) YesNo(label string, def bool) (bool, error) {
	for {
		answer, err := p.Line(label+" "+yesNoHint(def), "")
		if err != nil {
			return false, err
		}
		if v, ok := parseYesNo(answer, def); ok {
			return v, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
}

func (p *termPrompter) Password(label string) ([]byte, error) {
	fmt.Fprint(p.out, label+": ")
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return secret, nil
}

func (p *termPrompter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.line.Close()
}

// streamPrompter reads answers line by line from a non-terminal stdin.
type streamPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newStreamPrompter(in io.Reader, out io.Writer) *streamPrompter {
	br, ok := in.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(in)
	}
	return &streamPrompter{in: br, out: out}
}

func (p *streamPrompter) read() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", err
		}
		if line == "" {
			return "", errAborted
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *streamPrompter) Line(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(p.out, "%s: ", label)
	}
	answer, err := p.read()
	if err != nil {
		return "", err
	}
	if answer = strings.TrimSpace(answer); answer == "" {
		return def, nil
	}
	return answer, nil
}

func (p *streamPrompter) YesNo(label string, def bool) (bool, error) {
	answer, err := p.Line(label+" "+yesNoHint(def), "")
	if err != nil {
		return false, err
	}
	v, ok := parseYesNo(answer, def)
	if !ok {
		return false, fmt.Errorf("expected y or n, got %q", answer)
	}
	return v, nil
}

func (p *streamPrompter) Password(label string) ([]byte, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	answer, err := p.read()
	if err != nil {
		return nil, err
	}
	return []byte(answer), nil
}

func (p *streamPrompter) Close() error { return nil }

func yesNoHint(def bool) string {
	if def {
		return "[Y/n]"
	}
	return "[y/N]"
}

func parseYesNo(answer string, def bool) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "":
		return def, true
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	return false, false
}
