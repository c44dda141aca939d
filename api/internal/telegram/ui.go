package telegram

import (
	"fmt"
	"strings"

	"kisan-mitra/api/internal/history"
)

const welcomeText = `Namaste! I am Kisan Mitra.
Send a clear photo of the affected leaf or plant and I will tell you what is wrong and how to treat it.

Commands:
/lang <code> - answer language, e.g. /lang hi
/history - your last diagnoses
/clear - forget your history`

const askFollowUpText = "You can ask a follow-up question about this diagnosis."

func formatHistory(list []history.Entry) string {
	if len(list) == 0 {
		return "No past diagnoses found."
	}
	var b strings.Builder
	b.WriteString("Your recent diagnoses:\n")
	for i, e := range list {
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, e.IssueName, e.Date)
	}
	return strings.TrimRight(b.String(), "\n")
}
