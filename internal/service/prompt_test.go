package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/liliang-cn/oraculo/internal/domain"
)

func TestBuildPrompt_WithHistoryAndContext(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		SystemPrompt: "Você é {bot}. Sem dados diga '{marker}'.",
		BotName:      "Jarvis",
		UserName:     "Ana",
		NoInfoMarker: "não sei",
		History: []domain.Turn{
			{Role: domain.RoleUser, Content: "quem casou em 1950?"},
			{Role: domain.RoleAssistant, Content: "Maria e José."},
		},
		Chunks: []domain.RetrievedChunk{
			{Text: "certidão de casamento"},
			{Text: "escritura do imóvel"},
		},
		Question: "onde moravam?",
	})

	want := "Você é Jarvis. Sem dados diga 'não sei'.\n\n" +
		"--- INÍCIO DO HISTÓRICO DA CONVERSA ---\n" +
		"Ana: quem casou em 1950?\n" +
		"Jarvis: Maria e José.\n" +
		"--- FIM DO HISTÓRICO DA CONVERSA ---\n\n" +
		"CONTEXTO ATUAL (DOCUMENTOS RELEVANTES PARA A NOVA PERGUNTA):\n" +
		"certidão de casamento\n\n---\n\nescritura do imóvel\n\n" +
		"NOVA PERGUNTA: onde moravam?\n\n" +
		"RESPOSTA:"
	assert.Equal(t, want, prompt)
}

func TestBuildPrompt_NoContextNoHistory(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		SystemPrompt: "Você é {bot}.",
		BotName:      "Jarvis",
		Question:     "qual o cpf do vovô?",
	})

	assert.True(t, strings.HasPrefix(prompt, "Você é Jarvis.\n\n"+noContextNotice+"\n\n"))
	assert.NotContains(t, prompt, historyStart)
	assert.Contains(t, prompt, "NOVA PERGUNTA: qual o cpf do vovô?")
	assert.True(t, strings.HasSuffix(prompt, "RESPOSTA:"))
}

func TestBuildPrompt_DefaultUserLabel(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		BotName:  "Jarvis",
		History:  []domain.Turn{{Role: domain.RoleUser, Content: "oi de novo"}},
		Question: "e agora?",
	})
	assert.Contains(t, prompt, "Usuário: oi de novo\n")
}
