package outwriter

import (
	"os"

	"github.com/huangsam/pra/internal/contract"
	"golang.org/x/term"
)

// GetMaxTableEntityWidth calculates the maximum width for entity names in
// the status table based on terminal width.
func GetMaxTableEntityWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth == 0 {
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	// Dataset + Rows + Size + Pending + Staged + Modified with borders/padding
	baseWidth := 90

	available := termWidth - baseWidth
	if available < 15 {
		return 15
	}
	if available > 60 {
		return 60
	}
	return available
}
