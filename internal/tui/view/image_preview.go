package view

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

const (
	// PreviewRows is the terminal height a preview occupies.
	PreviewRows     = 18
	maxPreviewBytes = 5 * 1024 * 1024
)

// RenderPreview draws image bytes as terminal graphics through chafa, using
// the kitty protocol when the terminal speaks it and symbols otherwise.
func RenderPreview(image io.Reader, width int) (string, error) {
	if width < 30 {
		width = 40
	}

	chafaPath, err := exec.LookPath("chafa")
	if err != nil {
		return "", fmt.Errorf("chafa is not installed")
	}

	imageData, err := io.ReadAll(io.LimitReader(image, maxPreviewBytes))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	return runChafa(chafaPath, previewArgs(width, SupportsKittyGraphics()), imageData)
}

func previewArgs(width int, kitty bool) []string {
	size := fmt.Sprintf("%dx%d", width, PreviewRows)
	args := []string{"--size", size, "--view-size", size, "--align", "top,center"}
	if kitty {
		return append(args, "--format", "kitty", "--passthrough", KittyPassthroughMode(), "--relative", "on", "-")
	}
	return append(args, "--format", "symbols", "-")
}

func runChafa(chafaPath string, args []string, imageData []byte) (string, error) {
	cmd := exec.Command(chafaPath, args...)
	cmd.Stdin = bytes.NewReader(imageData)
	output, err := cmd.CombinedOutput()
	raw := string(output)
	trimmed := strings.TrimSpace(raw)

	if err != nil {
		return "", fmt.Errorf("render image via chafa: %w: %s", err, trimmed)
	}
	if ContainsKittyGraphicsEscape(raw) {
		return strings.TrimRight(raw, "\r\n"), nil
	}
	if trimmed == "" {
		return "", fmt.Errorf("empty output")
	}
	return trimmed, nil
}

func SupportsKittyGraphics() bool {
	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}
	termProgram := strings.ToLower(strings.TrimSpace(os.Getenv("TERM_PROGRAM")))
	if strings.Contains(termProgram, "ghostty") || strings.Contains(termProgram, "kitty") {
		return true
	}
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	return strings.Contains(term, "xterm-kitty") || strings.Contains(term, "ghostty")
}

func ContainsKittyGraphicsEscape(s string) bool {
	return strings.Contains(s, "\x1b_G")
}

func KittyRenderedLineCount(s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func ClearKittyGraphicsSequence() string {
	base := "\x1b_Ga=d,d=A\x1b\\"
	if os.Getenv("TMUX") == "" {
		return base
	}
	escaped := strings.ReplaceAll(base, "\x1b", "\x1b\x1b")
	return "\x1bPtmux;\x1b" + escaped + "\x1b\\"
}

func KittyPassthroughMode() string {
	if os.Getenv("TMUX") != "" {
		return "screen"
	}
	return "none"
}
