package speech

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/language"
)

// normalWPM is the speaking rate both say and espeak-ng use by default.
const normalWPM = 175

// runFunc runs a command with stdin and returns its stdout.
type runFunc func(ctx context.Context, name string, args []string, stdin string) ([]byte, error)

// CommandEngine speaks through a local text-to-speech program: say on
// macOS, espeak-ng or espeak elsewhere.
type CommandEngine struct {
	program string // resolved binary path
	flavor  string // "say" or "espeak"
	run     runFunc
}

// NewCommandEngine finds a usable TTS program on PATH.
func NewCommandEngine() (*CommandEngine, error) {
	candidates := []struct{ name, flavor string }{
		{"say", "say"},
		{"espeak-ng", "espeak"},
		{"espeak", "espeak"},
	}
	for _, c := range candidates {
		if path, err := exec.LookPath(c.name); err == nil {
			return &CommandEngine{program: path, flavor: c.flavor, run: runCommand}, nil
		}
	}
	return nil, fmt.Errorf("%w: no say or espeak-ng on PATH", ErrSynthesisUnavailable)
}

// Name returns the program in use.
func (e *CommandEngine) Name() string { return e.program }

func (e *CommandEngine) Voices(ctx context.Context) ([]Voice, error) {
	switch e.flavor {
	case "say":
		out, err := e.run(ctx, e.program, []string{"-v", "?"}, "")
		if err != nil {
			return nil, fmt.Errorf("list say voices: %w", err)
		}
		return parseSayVoices(out), nil
	default:
		out, err := e.run(ctx, e.program, []string{"--voices"}, "")
		if err != nil {
			return nil, fmt.Errorf("list espeak voices: %w", err)
		}
		return parseEspeakVoices(out), nil
	}
}

func (e *CommandEngine) Speak(ctx context.Context, u Utterance) error {
	args := e.args(u)
	_, err := e.run(ctx, e.program, args, u.Text)
	if err != nil && ctx.Err() == nil && e.flavor == "say" && u.Voice.ID == "" && slices.Contains(args, "-v") {
		// The locale's stock voice is not installed; let say pick one.
		_, err = e.run(ctx, e.program, []string{"-r", wpmArg(u.Rate), "-f", "-"}, u.Text)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%s: %w", e.flavor, err)
	}
	return nil
}

// sayVoices are the macOS stock voices for each locale, used when no
// installed voice matched.
var sayVoices = map[language.Tag]string{
	LocaleHindi:         "Lekha",
	LocaleIndianEnglish: "Rishi",
}

// args builds the command line; the text itself is sent on stdin.
func (e *CommandEngine) args(u Utterance) []string {
	wpm := wpmArg(u.Rate)

	switch e.flavor {
	case "say":
		args := []string{"-r", wpm}
		voice := u.Voice.ID
		if voice == "" {
			voice = sayVoices[u.Locale]
		}
		if voice != "" {
			args = append(args, "-v", voice)
		}
		return append(args, "-f", "-")
	default:
		voice := u.Voice.ID
		if voice == "" {
			// Fall back to the engine default for the locale's language.
			base, _ := u.Locale.Base()
			voice = base.String()
		}
		return []string{"-s", wpm, "-v", voice, "--stdin"}
	}
}

func wpmArg(rate float64) string {
	if rate <= 0 {
		rate = 1
	}
	return strconv.Itoa(int(normalWPM * rate))
}

func runCommand(ctx context.Context, name string, args []string, stdin string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return out, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

// regexSayVoice matches lines of `say -v ?`, e.g.
// "Lekha               hi_IN    # नमस्ते, मेरा नाम लेखा है।"
var regexSayVoice = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

func parseSayVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := regexSayVoice.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, Voice{ID: name, Name: name, Lang: m[2]})
	}
	return voices
}

// parseEspeakVoices reads the table printed by `espeak-ng --voices`:
// "Pty Language Age/Gender VoiceName File Other Languages".
func parseEspeakVoices(out []byte) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, Voice{ID: fields[1], Name: fields[3], Lang: fields[1]})
	}
	return voices
}
