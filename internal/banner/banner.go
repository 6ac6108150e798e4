package banner

import (
	"github.com/charmbracelet/lipgloss"

	"steadyrate/internal/tui/styles"
)

const ascii = `
     _                 _                 _
 ___| |_ ___  __ _  __| |_   _ _ __ __ _| |_ ___
/ __| __/ _ \/ _' |/ _' | | | | '__/ _' | __/ _ \
\__ \ ||  __/ (_| | (_| | |_| | | | (_| | ||  __/
|___/\__\___|\__,_|\__,_|\__, |_|  \__,_|\__\___|
                         |___/`

func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(styles.ColorPrimary).
		Bold(true)

	tagline := styles.Subtle.Render("   constant arrival-rate load generator")
	return "\n" + style.Render(ascii) + "\n" + tagline + "\n"
}
