package agent

import (
	"strings"

	ectx "github.com/xiaoyuanxun/anda-sub000/engine/context"
	"github.com/xiaoyuanxun/anda-sub000/types"
)

// Command is the outcome of an AttentionGate evaluation.
type Command int

const (
	CommandIgnore Command = iota
	CommandRespond
	CommandStop
)

func (c Command) String() string {
	switch c {
	case CommandRespond:
		return "respond"
	case CommandStop:
		return "stop"
	default:
		return "ignore"
	}
}

// ContentQuality is the outcome of AttentionGate.EvaluateContent.
type ContentQuality int

const (
	QualityIgnore ContentQuality = iota
	QualityGood
	QualityExceptional
)

var defaultStopPhrases = []string{
	"shut up", "dont talk", "silence", "stop talking", "be quiet", "hush",
	"wtf", "stfu", "stupid bot", "dumb bot", "stop responding",
	"can you not", "can you stop",
}

// AttentionGate scores whether an agent should act on a prompt before
// spending a completion call, a should-reply/should-act pre-filter ported
// from the original character bot's attention extension. It is a composable
// primitive only: nothing in engine/federation/state invokes it
// automatically, since character-driven behaviors are explicitly kept out
// of the mandatory path.
type AttentionGate struct {
	StopPhrases      []string
	MinPromptTokens  int
	MinContentTokens int
}

// NewAttentionGate builds a gate with the original extension's defaults.
func NewAttentionGate() *AttentionGate {
	return &AttentionGate{
		StopPhrases:      append([]string(nil), defaultStopPhrases...),
		MinPromptTokens:  4,
		MinContentTokens: 60,
	}
}

// ShouldReply decides whether message warrants a response, given the
// agent's assigned topics and recent conversation history. A stop phrase
// always short-circuits to Stop without spending a completion call; a
// message shorter than MinPromptTokens is ignored the same way.
func (g *AttentionGate) ShouldReply(ctx *ectx.AgentCtx, myName string, topics []string, recent []types.Message, message types.Message) Command {
	content := strings.ToLower(message.Text())
	for _, phrase := range g.StopPhrases {
		if strings.Contains(content, phrase) {
			return CommandStop
		}
	}
	if types.EvaluateTokens(content) < g.MinPromptTokens {
		return CommandIgnore
	}

	var history strings.Builder
	for _, m := range recent {
		history.WriteString(speakerLabel(m))
		history.WriteString(": ")
		history.WriteString(m.Text())
		history.WriteString("\n")
	}

	const (
		respondCommand = "RESPOND"
		ignoreCommand  = "IGNORE"
		stopCommand    = "STOP"
	)
	req := types.CompletionRequest{
		System: "You are " + myName + ".\n" +
			"You are part of a multi-user discussion environment. Evaluate the relevance of each message to your assigned conversation topics and decide whether to respond. Always prioritize messages that directly mention you or are closely related to the conversation topic.\n\n" +
			"Response options:\n" +
			"- " + respondCommand + ": the message is directly addressed to you or highly relevant to the topic.\n" +
			"- " + ignoreCommand + ": the message is unrelated to the topic.\n" +
			"- " + stopCommand + ": the user explicitly asked you to stop.",
		Prompt: "Assigned Conversation Topics: " + strings.Join(topics, ", ") + "\n" +
			"Recent Messages:\n" + history.String() + "\n" +
			"Latest message:\n" + speakerLabel(message) + ": " + message.Text() + "\n\n" +
			"Choose one response option and provide a brief explanation.",
	}

	out, err := ctx.Completion(req)
	if err != nil {
		return CommandIgnore
	}
	switch {
	case strings.Contains(out.Content, respondCommand):
		return CommandRespond
	case strings.Contains(out.Content, stopCommand):
		return CommandStop
	default:
		return CommandIgnore
	}
}

// EvaluateContent scores a standalone piece of content (e.g. a retrieved
// document) for knowledge value, used to gate whether it is worth
// persisting or rewarding.
func (g *AttentionGate) EvaluateContent(ctx *ectx.AgentCtx, content string) ContentQuality {
	if types.EvaluateTokens(content) < g.MinContentTokens {
		return QualityIgnore
	}

	const (
		highReward   = "HIGH_REWARD"
		mediumReward = "MEDIUM_REWARD"
		ignoreLevel  = "IGNORE"
	)
	req := types.CompletionRequest{
		System: "You are an expert evaluator for article content quality, specializing in assessing knowledge value. Classify the article's quality and determine the appropriate action.\n\n" +
			"Classification Levels:\n" +
			"- " + highReward + ": exceptional knowledge value, deep insights, originality, significant relevance.\n" +
			"- " + mediumReward + ": good knowledge value, meets most criteria.\n" +
			"- " + ignoreLevel + ": does not meet the criteria for high or medium knowledge value.",
		Prompt: "Article Content:\n" + content + "\n\nClassify into one of the three levels and give a brief explanation.",
	}

	out, err := ctx.Completion(req)
	if err != nil {
		return QualityIgnore
	}
	switch {
	case strings.Contains(out.Content, highReward):
		return QualityExceptional
	case strings.Contains(out.Content, mediumReward):
		return QualityGood
	default:
		return QualityIgnore
	}
}

func speakerLabel(m types.Message) string {
	if m.Name != "" {
		return m.Name
	}
	return string(m.Role)
}
