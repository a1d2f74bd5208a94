// Package subscription implements the conversational flow for creating a
// subscription group: trigger phrase, name prompt, invite code.
package subscription

import (
	"fmt"

	"line_subscription_bot/internal/domain"
	"line_subscription_bot/internal/invite"
)

// Action is a recognised command phrase.
type Action string

const (
	// ActionCreate starts the subscription creation flow.
	ActionCreate Action = "創建訂閱群組"
	// ActionHelp asks for usage instructions.
	ActionHelp Action = "查看幫助"
)

// Reply texts.
const (
	PromptSubscriptionName = "請輸入訂閱名稱："
	HelpText               = "請傳送「" + string(ActionCreate) + "」建立新的訂閱群組。"

	createdFormat = "訂閱名稱：%s\n您的群組邀請碼為：%s"
	echoFormat    = "您傳送了: %s"
)

// ParseAction maps text to a known action. Matching is exact.
func ParseAction(text string) (Action, bool) {
	switch Action(text) {
	case ActionCreate, ActionHelp:
		return Action(text), true
	default:
		return "", false
	}
}

// CodeGenerator produces invite codes of a requested length.
type CodeGenerator interface {
	Generate(length int) (string, error)
}

// Outcome is the result of resolving one text message.
type Outcome struct {
	Reply  string
	Status domain.UserStatus
}

// StatusChanged reports whether the caller must persist a new status.
func (o Outcome) StatusChanged(previous domain.UserStatus) bool {
	return o.Status != previous
}

// Resolver decides the next status and reply for a user's message.
type Resolver struct {
	codes      CodeGenerator
	codeLength int
}

// NewResolver constructs a Resolver. A nil generator uses a fresh invite.Generator.
func NewResolver(codes CodeGenerator) *Resolver {
	if codes == nil {
		codes = invite.NewGenerator()
	}

	return &Resolver{
		codes:      codes,
		codeLength: invite.DefaultLength,
	}
}

// Resolve maps (text, user) to a reply and the user's next status. It performs
// no I/O.
func (r *Resolver) Resolve(text string, user domain.User) Outcome {
	action, _ := ParseAction(text)

	switch {
	case action == ActionCreate:
		return Outcome{Reply: PromptSubscriptionName, Status: domain.StatusAwaitingName}
	case user.Status == domain.StatusAwaitingName:
		return Outcome{
			Reply:  fmt.Sprintf(createdFormat, text, r.code()),
			Status: domain.StatusIdle,
		}
	case action == ActionHelp:
		return Outcome{Reply: HelpText, Status: user.Status}
	default:
		return Outcome{Reply: fmt.Sprintf(echoFormat, text), Status: user.Status}
	}
}

// code falls back to the package generator, which cannot fail at the default
// length, when the configured generator errors.
func (r *Resolver) code() string {
	code, err := r.codes.Generate(r.codeLength)
	if err != nil {
		code, _ = invite.Generate(invite.DefaultLength)
	}
	return code
}
