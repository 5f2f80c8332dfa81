package chat

import (
	"fmt"
	"strings"

	"github.com/openlot/openlot/core/internal/completions"
	"github.com/openlot/openlot/core/internal/model"
)

const systemPrompt = `You are a helpful and friendly Car Shopping Assistant for OpenLot.

Instructions:
1. Answer the user's question based strictly on the provided 'Knowledge Context'.
2. When recommending cars:
   - Briefly describe each car using: brand, model, condition (new/used), mileage, price
   - Always format price with comma separators (e.g., $21,950)
   - Keep responses short, natural, and helpful, like a professional car salesperson
3. If the answer is not in the context, politely say you don't have that info but offer general advice.
4. When comparing cars, use bullet points for clarity.
5. Be conversational and helpful, asking follow-up questions when appropriate.`

// composePrompt builds the bounded completion transcript: system
// instructions, retrieved listings as knowledge context, the last
// window messages, and the new user text. History is assumed to arrive
// already trimmed to the window in transcript order.
func composePrompt(history []*model.Message, candidates []*model.Vehicle, scores []float64, userText string) []completions.Message {
	prompt := make([]completions.Message, 0, len(history)+3)
	prompt = append(prompt,
		completions.Message{Role: completions.RoleSystem, Content: systemPrompt},
		completions.Message{Role: completions.RoleSystem, Content: "Knowledge Context:\n" + formatContext(candidates, scores)},
	)
	for _, m := range history {
		role := completions.RoleUser
		if m.Role == model.RoleAssistant {
			role = completions.RoleAssistant
		}
		prompt = append(prompt, completions.Message{Role: role, Content: m.Content})
	}
	return append(prompt, completions.Message{Role: completions.RoleUser, Content: userText})
}

// formatContext renders the retrieved candidates as numbered listing
// blocks the model can quote from.
func formatContext(candidates []*model.Vehicle, scores []float64) string {
	if len(candidates) == 0 {
		return "No relevant car listings found."
	}
	var b strings.Builder
	for i, v := range candidates {
		fmt.Fprintf(&b, "\n--- Car Option %d (Relevance: %.2f) ---\n", i+1, scores[i])
		fmt.Fprintf(&b, "ID: %s\n", v.VehicleID)
		fmt.Fprintf(&b, "Brand: %s\n", v.Brand)
		fmt.Fprintf(&b, "Model: %s\n", v.Model)
		fmt.Fprintf(&b, "Condition: %s\n", v.Condition)
		fmt.Fprintf(&b, "Price: %s\n", formatPrice(v.Price))
		fmt.Fprintf(&b, "Mileage: %s miles\n", formatThousands(v.Mileage))
	}
	return b.String()
}

func formatPrice(p float64) string {
	if p <= 0 {
		return "N/A"
	}
	return "$" + formatThousands(p)
}

// formatThousands renders 21950 as "21,950".
func formatThousands(f float64) string {
	s := fmt.Sprintf("%.0f", f)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}
