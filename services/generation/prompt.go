package generation

import (
	"fmt"
	"strings"

	"github.com/upb/faq-rag/models"
	"github.com/upb/faq-rag/services/providers"
)

const systemPrompt = `You are a helpful customer support assistant for a FAQ knowledge base.
Answer the question using only the context below. Address the question directly.
If the context does not contain the information needed, say that you don't have enough information to answer accurately.
Do not make assumptions or add information that is not present in the context.
Reply in markdown.`

// BuildContext labels each document with its rank, source and title
func BuildContext(docs []*models.Document) string {
	var b strings.Builder
	for i, doc := range docs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] Source: %s", i+1, doc.SourceURL)
		if doc.Title != "" {
			fmt.Fprintf(&b, " (Title: %s)", doc.Title)
		}
		b.WriteString("\n")
		b.WriteString(doc.Content)
	}
	return b.String()
}

// BuildMessages composes the chat messages for one question
func BuildMessages(question string, docs []*models.Document) []providers.Message {
	user := fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nProvide a clear, direct answer based solely on the context provided.",
		BuildContext(docs), question)

	return []providers.Message{
		{Role: providers.RoleSystem, Content: systemPrompt},
		{Role: providers.RoleUser, Content: user},
	}
}
