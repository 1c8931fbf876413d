package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pyama86/quera/domain/model"
)

type Tagger interface {
	// メッセージを分類してカテゴリと優先度を返す
	TagQuery(ctx context.Context, message string) (*model.Tag, error)
}

func taggingPrompt(message string) string {
	return fmt.Sprintf(`Analyze this customer query and respond with ONLY a JSON object (no markdown, no explanation):

Query: "%s"

Return exactly this format:
{
  "category": "question" | "request" | "complaint" | "feedback" | "other",
  "priority": 1-5 (5 is most urgent)
}

Consider:
- Complaints, urgent issues, service problems = priority 5
- Important requests = priority 4
- Standard questions = priority 3
- General inquiries = priority 2
- Feedback, thanks = priority 1`, message)
}

// parseTag parses the model's raw reply. Markdown code fences are stripped
// first; anything that still fails to parse degrades to the default tag
// instead of failing the request.
func parseTag(text string) *model.Tag {
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	var tag model.Tag
	if err := json.Unmarshal([]byte(clean), &tag); err != nil {
		slog.Warn("failed to parse tagger response, falling back to defaults",
			slog.String("text", text))
		return model.DefaultTag()
	}
	tag.Normalize()
	return &tag
}
