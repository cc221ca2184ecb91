package command

import (
	"fmt"
	"strings"
	"time"
)

func helpText(prefix string) string {
	economy := []string{
		"balance [@user]",
		"deposit <amount>",
		"withdraw <amount>",
		"pay @user <amount>",
		"gamble <amount>",
		"mystery",
		"buy <item>",
		"balall",
		"work",
	}
	admin := []string{
		"give @user <amount>",
		"giveall <amount>",
		"remove @user <amount>",
		"removeall <amount>",
		"send @channel <message>",
		"kick @user <reason>",
		"ban @user <reason>",
		"timeout @user <minutes> <reason>",
		"clear <1-100>",
		"boost @user <multiplier> <minutes>",
		"multiplier @user <value>",
	}
	var b strings.Builder
	b.WriteString("📖 Commands\n\n💰 Economy:\n")
	for _, c := range economy {
		b.WriteString(prefix + c + "\n")
	}
	b.WriteString("\n⚙️ Admin:\n")
	for _, c := range admin {
		b.WriteString(prefix + c + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// humanDuration renders whole hours or minutes in words, anything else as time.Duration does.
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	}
	return d.String()
}
