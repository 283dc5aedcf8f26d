package slackbot

import (
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
)

// IsHumanMessage reports whether ev is a plain message typed by a person.
// Bot posts, including the bot's own replies, and edits or joins carry a bot
// id or a subtype.
func IsHumanMessage(ev *slackevents.MessageEvent) bool {
	return ev != nil && ev.BotID == "" && ev.User != "" && ev.SubType == ""
}

// BlockActionValues returns the button values of a block_actions interaction.
func BlockActionValues(cb *slack.InteractionCallback) []string {
	values := make([]string, 0, len(cb.ActionCallback.BlockActions))
	for _, action := range cb.ActionCallback.BlockActions {
		if action.Value != "" {
			values = append(values, action.Value)
		}
	}
	return values
}
