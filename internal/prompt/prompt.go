package prompt

import (
	"fmt"
	"strings"

	"paperrag/internal/domain"
)

const (
	ContextPlaceholder  = "{context}"
	QuestionPlaceholder = "{question}"
)

// DefaultTemplate asks the model to answer from the retrieved context only.
const DefaultTemplate = `
Answer the question based only on the following context:

{context}

---

Answer the question based on the above context: {question}
`

// Validate checks that template carries both placeholders.
func Validate(template string) error {
	var missing []string
	for _, p := range []string{ContextPlaceholder, QuestionPlaceholder} {
		if !strings.Contains(template, p) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrTemplate, strings.Join(missing, ", "))
	}
	return nil
}

// Assemble fills the template in a single pass. Placeholders that appear inside
// contextText or question are left as they are.
func Assemble(template, contextText, question string) (string, error) {
	if err := Validate(template); err != nil {
		return "", err
	}
	r := strings.NewReplacer(ContextPlaceholder, contextText, QuestionPlaceholder, question)
	return r.Replace(template), nil
}
