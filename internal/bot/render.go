package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/alphabot-ai/voicethreads/internal/pending"
	"github.com/alphabot-ai/voicethreads/internal/store"
	"github.com/alphabot-ai/voicethreads/internal/transport"
)

const (
	msgWelcome = "👋 Welcome to Voice Threads!\n\n" +
		"Leave voice comments on TikTok and YouTube videos, reply to others, and get notified when someone talks back.\n\n" +
		"Send a video link to get started, or pick an option below."
	msgHelp = "How it works:\n" +
		"• Send a video link, then tap 🎙 to record a voice comment.\n" +
		"• Every comment gets a short code. Share it, and anyone can find the comment with 🔍 Search or /search CODE.\n" +
		"• React, reply by voice or text, favorite ⭐ or bookmark 📍 comments with the buttons under each one.\n" +
		"• ➕ Add My Video tracks a video you own so you hear about every new comment.\n" +
		"• /cancel drops whatever you were in the middle of."
	msgFailure        = "⚠️ Something went wrong. Please try again."
	msgUnknownAction  = "⚠️ That button is no longer valid."
	msgCancelled      = "✖️ Cancelled."
	msgNothingPending = "No pending action found. Send a video link or pick an option from the menu."
	msgUnsupported    = "🤔 I didn't get that. Send a TikTok or YouTube link, or pick an option from the menu."
	msgThreadGone     = "❌ That video thread no longer exists."
	msgCommentGone    = "❌ That comment no longer exists."
	msgNoCheckpoint   = "📍 No checkpoint yet. Tap 📍 under any comment to bookmark it."
)

func prompt(k pending.Kind) string {
	switch k {
	case pending.AwaitingSearchCode:
		return "🔍 Send the comment code you want to find."
	case pending.AwaitingPublicLink:
		return "🎥 Send the TikTok or YouTube link you want to comment on."
	case pending.AwaitingOwnedLink:
		return "➕ Send the link to your video. You'll be notified about every new voice comment on it."
	case pending.AwaitingListenTarget:
		return "🎧 Send the link of the video whose comments you want to hear."
	case pending.AwaitingVoiceForThread:
		return "🎙 Send a voice message to add your comment, or /cancel."
	case pending.AwaitingVoiceReply:
		return "🎙 Send a voice message to reply, or /cancel."
	case pending.AwaitingTextReply:
		return "💬 Send your reply as a text message, or /cancel."
	}
	return msgNothingPending
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func formatReactions(c store.ReactionCounts) string {
	parts := make([]string, 0, len(store.ReactionKinds))
	for _, k := range store.ReactionKinds {
		parts = append(parts, fmt.Sprintf("%s %d", k.Emoji(), c[k]))
	}
	return strings.Join(parts, "  ")
}

func renderCard(card *Card) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔑 Code: %s (ID: %d)\n", card.Code, card.Comment.ID)
	fmt.Fprintf(&b, "👤 From: %s\n", card.Comment.AuthorName)
	fmt.Fprintf(&b, "🕒 Posted: %s\n", formatTime(card.Comment.CreatedAt))
	if card.Thread != nil {
		fmt.Fprintf(&b, "🔗 Video: %s\n", card.Thread.Link)
	}
	fmt.Fprintf(&b, "%s\n", formatReactions(card.Reactions))
	fmt.Fprintf(&b, "💬 Replies: %d", card.Replies)
	return b.String()
}

func cardRows(card *Card) [][]transport.Button {
	id := card.Comment.ID
	reactions := make([]transport.Button, 0, len(store.ReactionKinds))
	for _, k := range store.ReactionKinds {
		reactions = append(reactions, transport.Button{
			Label: fmt.Sprintf("%s %d", k.Emoji(), card.Reactions[k]),
			Token: reactToken(id, k),
		})
	}

	rows := [][]transport.Button{
		reactions,
		{
			{Label: "⭐ Favorite", Token: token(ActFavorite, id)},
			{Label: "📍 Checkpoint", Token: token(ActCheckpoint, id)},
		},
		{
			{Label: "🎙 Voice reply", Token: token(ActReplyVoice, id)},
			{Label: "💬 Text reply", Token: token(ActReplyText, id)},
		},
	}
	if card.Replies > 0 {
		rows = append(rows, []transport.Button{
			{Label: fmt.Sprintf("↩️ Replies (%d)", card.Replies), Token: pagedToken(ActReplies, id, 1)},
		})
	}
	return rows
}

func threadRows(thread *store.Thread) [][]transport.Button {
	return [][]transport.Button{{
		{Label: "🎙 Add voice comment", Token: token(ActAddVoice, thread.ID)},
		{Label: "🎧 Listen", Token: pagedToken(ActListen, thread.ID, 1)},
	}}
}

func moreRow(label, tok string) [][]transport.Button {
	return [][]transport.Button{{{Label: label, Token: tok}}}
}

func renderNotification(n *store.Notification) string {
	return fmt.Sprintf("• %s\n  %s", n.Message, formatTime(n.CreatedAt))
}
