package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"
)

// formatFrame renders one server frame on a single coloured line.
func formatFrame(data []byte) string {
	if !gjson.ValidBytes(data) {
		return color.CyanString("raw") + " " + string(data)
	}

	frame := gjson.ParseBytes(data)
	kind := frame.Get("type").String()
	content := frame.Get("content")

	switch kind {
	case "event_response":
		return color.YellowString("event") + " " + content.String()
	case "error":
		return color.RedString("error") + " " + content.String()
	case "table_response":
		return color.GreenString("table") + " " + summarizeTable(content)
	case "text_response":
		return color.GreenString("text") + " " + content.String()
	case "heartbeat", "pong", "heartbeat_ack", "connection_check":
		return color.New(color.Faint).Sprint(kind)
	case "":
		if id := frame.Get("session_id"); id.Exists() {
			return color.MagentaString("welcome") + " " + id.String() + " " + frame.Get("message").String()
		}
	}
	return color.CyanString(kind) + " " + frame.Raw
}

func summarizeTable(payload gjson.Result) string {
	out := fmt.Sprintf("%d products", payload.Get("total_count").Int())
	if name := payload.Get("recipe.name"); name.Exists() {
		out = fmt.Sprintf("recipe %q, %s", name.String(), out)
	}
	payload.Get("products").ForEach(func(_, p gjson.Result) bool {
		out += fmt.Sprintf("\n  - %s (corsia %s, scaffale %s)",
			p.Get("name").String(),
			p.Get("location.aisle").String(),
			p.Get("location.shelf").String(),
		)
		return true
	})
	return out
}
