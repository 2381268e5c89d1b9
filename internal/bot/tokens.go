package bot

import (
	"errors"
	"strconv"
	"strings"

	"github.com/alphabot-ai/voicethreads/internal/store"
)

var ErrMalformedToken = errors.New("bot: malformed button token")

// Action is the leading segment of a button token.
type Action string

const (
	// Stateless actions.
	ActReact          Action = "react"      // react_<comment>_<kind>
	ActFavorite       Action = "fav"        // fav_<comment>
	ActCheckpoint     Action = "checkpoint" // checkpoint_<comment>
	ActPlay           Action = "play"       // play_<comment>
	ActDeleteThread   Action = "delthread"  // delthread_<thread>
	ActDeleteComment  Action = "delcomment" // delcomment_<comment>
	ActListen         Action = "listen"     // listen_<thread>_<page>
	ActReplies        Action = "replies"    // replies_<comment>_<page>
	ActMine           Action = "mine"       // mine_<page>
	ActFavorites      Action = "favs"       // favs_<page>
	ActTracked        Action = "tracked"    // tracked_<page>
	ActNotifications  Action = "notif"      // notif_<page>
	ActNotifReplies   Action = "notifreply" // notifreply_<page>
	ActNotifReactions Action = "notifreact" // notifreact_<page>

	// Flow entry: these set the pending action.
	ActAddVoice   Action = "addvoice"   // addvoice_<thread>
	ActReplyVoice Action = "replyvoice" // replyvoice_<comment>
	ActReplyText  Action = "replytext"  // replytext_<comment>
	ActMenu       Action = "menu"       // menu_<command>
)

// subKind says what, if anything, follows the id.
type subKind int

const (
	subNone subKind = iota
	subPage
	subReaction
)

var actionSubs = map[Action]subKind{
	ActReact:          subReaction,
	ActFavorite:       subNone,
	ActCheckpoint:     subNone,
	ActPlay:           subNone,
	ActDeleteThread:   subNone,
	ActDeleteComment:  subNone,
	ActListen:         subPage,
	ActReplies:        subPage,
	ActMine:           subNone,
	ActFavorites:      subNone,
	ActTracked:        subNone,
	ActNotifications:  subNone,
	ActNotifReplies:   subNone,
	ActNotifReactions: subNone,
	ActAddVoice:       subNone,
	ActReplyVoice:     subNone,
	ActReplyText:      subNone,
	ActMenu:           subNone,
}

// Token is a parsed button token of the form <action>_<id>[_<sub>].
type Token struct {
	Action Action
	ID     int64
	Sub    string
}

// Page returns the page carried by paged tokens.
func (t Token) Page() int {
	if actionSubs[t.Action] == subPage {
		n, _ := strconv.Atoi(t.Sub)
		return n
	}
	return int(t.ID)
}

func (t Token) Reaction() store.ReactionKind {
	return store.ReactionKind(t.Sub)
}

func (t Token) String() string {
	s := string(t.Action) + "_" + strconv.FormatInt(t.ID, 10)
	if t.Sub != "" {
		s += "_" + t.Sub
	}
	return s
}

func ParseToken(s string) (Token, error) {
	parts := strings.Split(s, "_")
	if len(parts) < 2 || len(parts) > 3 {
		return Token{}, ErrMalformedToken
	}

	action := Action(parts[0])
	sub, ok := actionSubs[action]
	if !ok {
		return Token{}, ErrMalformedToken
	}

	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id < 0 {
		return Token{}, ErrMalformedToken
	}

	tok := Token{Action: action, ID: id}
	switch sub {
	case subNone:
		if len(parts) != 2 {
			return Token{}, ErrMalformedToken
		}
	case subPage:
		if len(parts) != 3 {
			return Token{}, ErrMalformedToken
		}
		if _, err := strconv.Atoi(parts[2]); err != nil {
			return Token{}, ErrMalformedToken
		}
		tok.Sub = parts[2]
	case subReaction:
		if len(parts) != 3 || !store.ReactionKind(parts[2]).Valid() {
			return Token{}, ErrMalformedToken
		}
		tok.Sub = parts[2]
	}
	return tok, nil
}

func token(a Action, id int64) string {
	return Token{Action: a, ID: id}.String()
}

func pagedToken(a Action, id int64, page int) string {
	return Token{Action: a, ID: id, Sub: strconv.Itoa(page)}.String()
}

func reactToken(commentID int64, kind store.ReactionKind) string {
	return Token{Action: ActReact, ID: commentID, Sub: string(kind)}.String()
}
