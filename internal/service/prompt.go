package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/portfolio-ai/concierge/internal/model"
)

// Persona names the assistant and the person it represents.
type Persona struct {
	AssistantName string
	SubjectName   string
	ContactEmail  string
	WorkPage      string
	EducationPage string
}

func (p Persona) withDefaults() Persona {
	if p.SubjectName == "" {
		p.SubjectName = "the candidate"
	}
	if p.AssistantName == "" {
		p.AssistantName = "Concierge"
	}
	if p.WorkPage == "" {
		p.WorkPage = "/work"
	}
	if p.EducationPage == "" {
		p.EducationPage = "/education"
	}
	return p
}

// Acknowledgement is the model turn that follows the grounding prompt.
func (p Persona) Acknowledgement() string {
	return fmt.Sprintf("Understood. I will use information from the provided context to answer questions about %s's professional background. How can I assist?", p.SubjectName)
}

const passageSeparator = "\n\n---\n\n"

// BuildSystemPrompt renders the grounding instruction: persona, answer
// rules, the selected passages and the profile record.
func BuildSystemPrompt(p Persona, passages []model.Passage, profile map[string]any) string {
	p = p.withDefaults()

	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil || profile == nil {
		profileJSON = []byte("{}")
	}
	grounding := "[PROFILE DATA]\n" + string(profileJSON)

	if len(passages) > 0 {
		blocks := make([]string, len(passages))
		for i, ps := range passages {
			title := ps.Title
			if title == "" {
				title = "Untitled"
			}
			blocks[i] = fmt.Sprintf("[PASSAGE %d]\nTitle: %s\nContent: %s", i+1, title, ps.Content)
		}
		grounding = strings.Join(blocks, passageSeparator) + passageSeparator + grounding
	}

	contact := "Share a contact channel ONLY when the user explicitly asks how to get in touch."
	if p.ContactEmail != "" {
		contact = fmt.Sprintf("Share the contact email (%s) ONLY when the user explicitly asks how to contact %s.", p.ContactEmail, p.SubjectName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a professional recruiting concierge representing %s. ", p.AssistantName, p.SubjectName)
	fmt.Fprintf(&b, "Your role is to help recruiters learn about %s's background, experience, skills, and availability.\n\n", p.SubjectName)

	b.WriteString("ANSWER ACCURACY AND STRUCTURE:\n")
	b.WriteString("1. Use ONLY the SELECTED PASSAGES and PROFILE DATA below to answer. Prefer specific details (names, roles, outcomes, dates) over vague statements.\n")
	b.WriteString("2. If the question is about a specific topic, use only passages that relate to that topic.\n")
	b.WriteString("3. Be direct, concise, and factual. Lead with the most relevant point.\n")
	b.WriteString("4. Do not use markdown. Write in plain, conversational sentences.\n")
	b.WriteString("5. Do not invent information that is not in the context.\n\n")

	b.WriteString("RULES:\n")
	b.WriteString("- NEVER share salary, personal contact details, family details, or government IDs.\n")
	b.WriteString("- Read the conversation history to understand short replies such as \"yes\" or \"tell me more\".\n")
	fmt.Fprintf(&b, "- %s\n", contact)
	b.WriteString("- DO NOT repeat content you already said in this conversation. Refer back briefly or add only new details.\n")
	fmt.Fprintf(&b, "- NEVER say that the provided documents or context do not contain something. If a topic is not covered, give a brief helpful response: suggest the Work page (%s) or the Education page (%s), or invite another question.\n\n", p.WorkPage, p.EducationPage)

	b.WriteString("SELECTED RELEVANT PASSAGES AND PROFILE:\n")
	b.WriteString(grounding)
	return b.String()
}

// LoadProfile reads the structured profile record. A missing file yields an
// empty profile.
func LoadProfile(path string) (map[string]any, error) {
	profile := map[string]any{}
	if path == "" {
		return profile, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return profile, nil
	}
	if err != nil {
		return profile, fmt.Errorf("read profile: %w", err)
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		return map[string]any{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return profile, nil
}
