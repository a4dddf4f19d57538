package service

import (
	"strings"

	"github.com/liliang-cn/oraculo/internal/domain"
)

const (
	historyStart     = "--- INÍCIO DO HISTÓRICO DA CONVERSA ---"
	historyEnd       = "--- FIM DO HISTÓRICO DA CONVERSA ---"
	contextHeader    = "CONTEXTO ATUAL (DOCUMENTOS RELEVANTES PARA A NOVA PERGUNTA):"
	noContextNotice  = "Nenhum documento relevante foi encontrado para a pergunta atual."
	contextSeparator = "\n\n---\n\n"
	defaultUserLabel = "Usuário"
)

// PromptInput is everything a question turn feeds into the language model
type PromptInput struct {
	SystemPrompt string
	BotName      string
	UserName     string
	NoInfoMarker string
	History      []domain.Turn
	Chunks       []domain.RetrievedChunk
	Question     string
}

// BuildPrompt assembles the instruction, prior turns, retrieved context and question.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString(renderTemplate(in.SystemPrompt, map[string]string{
		"bot":    in.BotName,
		"marker": in.NoInfoMarker,
	}))
	b.WriteString("\n\n")

	if len(in.Chunks) == 0 {
		b.WriteString(noContextNotice)
		b.WriteString("\n\n")
	}

	if len(in.History) > 0 {
		userLabel := in.UserName
		if userLabel == "" {
			userLabel = defaultUserLabel
		}
		b.WriteString(historyStart)
		b.WriteString("\n")
		for _, t := range in.History {
			label := userLabel
			if t.Role == domain.RoleAssistant {
				label = in.BotName
			}
			b.WriteString(label)
			b.WriteString(": ")
			b.WriteString(t.Content)
			b.WriteString("\n")
		}
		b.WriteString(historyEnd)
		b.WriteString("\n\n")
	}

	texts := make([]string, len(in.Chunks))
	for i, c := range in.Chunks {
		texts[i] = c.Text
	}
	b.WriteString(contextHeader)
	b.WriteString("\n")
	b.WriteString(strings.Join(texts, contextSeparator))
	b.WriteString("\n\n")

	b.WriteString("NOVA PERGUNTA: ")
	b.WriteString(in.Question)
	b.WriteString("\n\n")
	b.WriteString("RESPOSTA:")

	return b.String()
}

// renderTemplate replaces {key} placeholders.
func renderTemplate(tmpl string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for k, v := range values {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
