package config

import "strings"

// Changes returns the dotted names of the settings that differ between
// oldCfg and newCfg, in a stable order. Secrets never live in File, so the
// result is safe to log.
func Changes(oldCfg, newCfg File) []string {
	var out []string
	add := func(name string, changed bool) {
		if changed {
			out = append(out, name)
		}
	}

	add("telegram.poll_timeout", strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout))

	add("broadcast.name", strings.TrimSpace(oldCfg.Broadcast.Name) != strings.TrimSpace(newCfg.Broadcast.Name))
	add("broadcast.send_at", strings.TrimSpace(oldCfg.Broadcast.SendAt) != strings.TrimSpace(newCfg.Broadcast.SendAt))
	add("broadcast.message", oldCfg.Broadcast.Message != newCfg.Broadcast.Message)
	add("broadcast.delay", strings.TrimSpace(oldCfg.Broadcast.Delay) != strings.TrimSpace(newCfg.Broadcast.Delay))
	add("broadcast.worksheet", strings.TrimSpace(oldCfg.Broadcast.Worksheet) != strings.TrimSpace(newCfg.Broadcast.Worksheet))

	add("logging", oldCfg.Logging != newCfg.Logging)
	return out
}
